package queue

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/common"
)

// ErrNotAddressable is returned for a mutation that references a record the
// remote store does not know yet.
var ErrNotAddressable = errors.New("record not addressable remotely")

// Mutation is a pending remote effect on one fixed table. The set of
// implementations is closed; each one fixes its table and operation type.
type Mutation interface {
	Operation() (common.Operation, error)
	mutation()
}

type InsertUser struct {
	LocalID models.ID
	Fields  models.UserFields
}

type UpdateUser struct {
	ID     models.ID
	Fields models.UserFields
}

type DeleteUser struct {
	ID models.ID
}

// UpsertDailyLog collapses repeated writes for one user, date and category.
type UpsertDailyLog struct {
	LocalID models.ID
	Fields  models.DailyLogFields
}

type InsertAppointment struct {
	LocalID models.ID
	Fields  models.AppointmentFields
}

type UpdateAppointment struct {
	ID     models.ID
	Fields models.AppointmentFields
}

type DeleteAppointment struct {
	ID models.ID
}

type InsertFeedPost struct {
	LocalID models.ID
	Fields  models.FeedPostFields
}

type UpdateFeedPost struct {
	ID     models.ID
	Fields models.FeedPostFields
}

type DeleteFeedPost struct {
	ID models.ID
}

type InsertFeedLike struct {
	LocalID models.ID
	Fields  models.FeedLikeFields
}

type DeleteFeedLike struct {
	ID models.ID
}

type InsertFeedComment struct {
	LocalID models.ID
	Fields  models.FeedCommentFields
}

type DeleteFeedComment struct {
	ID models.ID
}

func (InsertUser) mutation()        {}
func (UpdateUser) mutation()        {}
func (DeleteUser) mutation()        {}
func (UpsertDailyLog) mutation()    {}
func (InsertAppointment) mutation() {}
func (UpdateAppointment) mutation() {}
func (DeleteAppointment) mutation() {}
func (InsertFeedPost) mutation()    {}
func (UpdateFeedPost) mutation()    {}
func (DeleteFeedPost) mutation()    {}
func (InsertFeedLike) mutation()    {}
func (DeleteFeedLike) mutation()    {}
func (InsertFeedComment) mutation() {}
func (DeleteFeedComment) mutation() {}

func (m InsertUser) Operation() (common.Operation, error) {
	return insertOp(common.TableUsers, m.LocalID, m.Fields)
}

func (m UpdateUser) Operation() (common.Operation, error) {
	return updateOp(common.TableUsers, m.ID, m.Fields)
}

func (m DeleteUser) Operation() (common.Operation, error) {
	return deleteOp(common.TableUsers, m.ID)
}

func (m UpsertDailyLog) Operation() (common.Operation, error) {
	op, err := insertOp(common.TableDailyLogs, m.LocalID, m.Fields, m.Fields.UserID)
	if err != nil {
		return op, err
	}
	op.Type = common.OpUpsert
	op.ConflictKey = common.DailyLogConflictKey
	return op, nil
}

func (m InsertAppointment) Operation() (common.Operation, error) {
	return insertOp(common.TableAppointments, m.LocalID, m.Fields, m.Fields.UserID)
}

func (m UpdateAppointment) Operation() (common.Operation, error) {
	return updateOp(common.TableAppointments, m.ID, m.Fields, m.Fields.UserID)
}

func (m DeleteAppointment) Operation() (common.Operation, error) {
	return deleteOp(common.TableAppointments, m.ID)
}

func (m InsertFeedPost) Operation() (common.Operation, error) {
	return insertOp(common.TableFeedPosts, m.LocalID, m.Fields, m.Fields.UserID)
}

func (m UpdateFeedPost) Operation() (common.Operation, error) {
	return updateOp(common.TableFeedPosts, m.ID, m.Fields, m.Fields.UserID)
}

func (m DeleteFeedPost) Operation() (common.Operation, error) {
	return deleteOp(common.TableFeedPosts, m.ID)
}

func (m InsertFeedLike) Operation() (common.Operation, error) {
	return insertOp(common.TableFeedLikes, m.LocalID, m.Fields, m.Fields.PostID, m.Fields.UserID)
}

func (m DeleteFeedLike) Operation() (common.Operation, error) {
	return deleteOp(common.TableFeedLikes, m.ID)
}

func (m InsertFeedComment) Operation() (common.Operation, error) {
	return insertOp(common.TableFeedComments, m.LocalID, m.Fields, m.Fields.PostID, m.Fields.UserID)
}

func (m DeleteFeedComment) Operation() (common.Operation, error) {
	return deleteOp(common.TableFeedComments, m.ID)
}

func confirmed(refs ...models.ID) error {
	for _, id := range refs {
		if id.Kind() != models.KindConfirmed {
			return fmt.Errorf("%w: %q is %s", ErrNotAddressable, id.String(), id.Kind())
		}
	}
	return nil
}

func insertOp(table string, local models.ID, fields any, owners ...models.ID) (common.Operation, error) {
	if err := confirmed(owners...); err != nil {
		return common.Operation{}, err
	}
	data, err := models.Payload(fields)
	if err != nil {
		return common.Operation{}, err
	}
	return common.Operation{Type: common.OpInsert, Table: table, Data: data, LocalID: local.String()}, nil
}

func updateOp(table string, id models.ID, fields any, owners ...models.ID) (common.Operation, error) {
	if err := confirmed(append([]models.ID{id}, owners...)...); err != nil {
		return common.Operation{}, err
	}
	data, err := models.Payload(fields)
	if err != nil {
		return common.Operation{}, err
	}
	return common.Operation{Type: common.OpUpdate, Table: table, ID: id.String(), Data: data}, nil
}

func deleteOp(table string, id models.ID) (common.Operation, error) {
	if err := confirmed(id); err != nil {
		return common.Operation{}, err
	}
	return common.Operation{Type: common.OpDelete, Table: table, ID: id.String()}, nil
}
