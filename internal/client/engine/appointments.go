package engine

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
)

type AppointmentInput struct {
	ClientName   string
	ScheduledAt  time.Time
	Notes        string
	CountsAsDemo bool
}

func (e *Engine) appointmentFields(ctx context.Context, user models.ID, in AppointmentInput) (models.AppointmentFields, error) {
	fields := models.AppointmentFields{
		UserID:       user,
		ClientName:   in.ClientName,
		ScheduledAt:  in.ScheduledAt,
		Notes:        in.Notes,
		CountsAsDemo: in.CountsAsDemo,
	}
	if err := e.check(fields); err != nil {
		return fields, e.reject(ctx, err)
	}
	if fields.ScheduledAt.IsZero() {
		return fields, e.reject(ctx, invalid("ScheduledAt", "required"))
	}
	fields.ClientName = Sanitize(fields.ClientName)
	fields.Notes = Sanitize(fields.Notes)
	if fields.ClientName == "" {
		return fields, e.reject(ctx, invalid("ClientName", "required"))
	}
	return fields, nil
}

// AddAppointment books an appointment for user. One that counts as a demo
// also increments today's demos.
func (e *Engine) AddAppointment(ctx context.Context, user models.ID, in AppointmentInput) (models.Appointment, error) {
	fields, err := e.appointmentFields(ctx, user, in)
	if err != nil {
		return models.Appointment{}, err
	}
	if _, ok := e.User(user); !ok {
		return models.Appointment{}, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}

	id, createdAt := e.create(ctx, func(local models.ID) queue.Mutation {
		return queue.InsertAppointment{LocalID: local, Fields: fields}
	}, user)
	a := models.Appointment{ID: id, CreatedAt: createdAt, AppointmentFields: fields}
	e.appointments.do(func(as *[]models.Appointment) { *as = upsert(*as, a, appointmentID) })
	e.persistLater(store.KeyAppointments)

	if fields.CountsAsDemo {
		if _, err := e.Increment(ctx, user, models.CategoryDemos); err != nil {
			e.logger.Warn(ctx, "demo increment failed", "error", err)
		}
	}
	return a, nil
}

func (e *Engine) EditAppointment(ctx context.Context, id models.ID, in AppointmentInput) (models.Appointment, error) {
	cur, ok := read(e.appointments, func(as []models.Appointment) findResult[models.Appointment] {
		return find(as, func(a models.Appointment) bool { return a.ID == id })
	}).get()
	if !ok {
		return models.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	fields, err := e.appointmentFields(ctx, cur.UserID, in)
	if err != nil {
		return models.Appointment{}, err
	}

	cur.AppointmentFields = fields
	e.appointments.do(func(as *[]models.Appointment) { *as = upsert(*as, cur, appointmentID) })
	e.persistLater(store.KeyAppointments)
	e.dispatch(ctx, queue.UpdateAppointment{ID: id, Fields: fields}, id, fields.UserID)
	return cur, nil
}

func (e *Engine) DeleteAppointment(ctx context.Context, id models.ID) error {
	var found bool
	e.appointments.do(func(as *[]models.Appointment) {
		n := len(*as)
		*as = slices.DeleteFunc(*as, func(a models.Appointment) bool { return a.ID == id })
		found = len(*as) != n
	})
	if !found {
		return fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	e.persistLater(store.KeyAppointments)
	e.dispatch(ctx, queue.DeleteAppointment{ID: id}, id)
	return nil
}

func appointmentID(a *models.Appointment) *models.ID { return &a.ID }
