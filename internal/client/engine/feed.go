package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
)

// AddPost publishes content on the team feed as user. Category is optional.
func (e *Engine) AddPost(ctx context.Context, user models.ID, content string, category models.Category) (models.FeedPost, error) {
	return e.addPost(ctx, user, content, category, false)
}

func (e *Engine) addPost(ctx context.Context, user models.ID, content string, category models.Category, auto bool) (models.FeedPost, error) {
	u, ok := e.User(user)
	if !ok {
		return models.FeedPost{}, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}
	fields := models.FeedPostFields{UserID: user, UserName: u.Name, Content: content, Category: category, Auto: auto}
	if err := e.check(fields); err != nil {
		return models.FeedPost{}, e.reject(ctx, err)
	}
	if fields.Content = Sanitize(fields.Content); fields.Content == "" {
		return models.FeedPost{}, e.reject(ctx, invalid("Content", "required"))
	}

	id, createdAt := e.create(ctx, func(local models.ID) queue.Mutation {
		return queue.InsertFeedPost{LocalID: local, Fields: fields}
	}, user)
	p := models.FeedPost{ID: id, CreatedAt: createdAt, FeedPostFields: fields}
	e.feed.do(func(ps *[]models.FeedPost) {
		if i := slices.IndexFunc(*ps, func(q models.FeedPost) bool { return q.ID == id }); i >= 0 {
			(*ps)[i].FeedPostFields = fields
			return
		}
		*ps = slices.Insert(*ps, 0, p)
	})
	e.persistLater(store.KeyFeed)
	return p, nil
}

func (e *Engine) post(id models.ID) (models.FeedPost, bool) {
	return read(e.feed, func(ps []models.FeedPost) findResult[models.FeedPost] {
		r := find(ps, func(p models.FeedPost) bool { return p.ID == id })
		r.v = r.v.Clone()
		return r
	}).get()
}

// updatePost applies fn to the post with id and reports whether it exists.
func (e *Engine) updatePost(id models.ID, fn func(p *models.FeedPost)) (models.FeedPost, bool) {
	var (
		out   models.FeedPost
		found bool
	)
	e.feed.do(func(ps *[]models.FeedPost) {
		i := slices.IndexFunc(*ps, func(p models.FeedPost) bool { return p.ID == id })
		if i < 0 {
			return
		}
		fn(&(*ps)[i])
		out, found = (*ps)[i].Clone(), true
	})
	return out, found
}

func (e *Engine) EditPost(ctx context.Context, id models.ID, content string) (models.FeedPost, error) {
	cur, ok := e.post(id)
	if !ok {
		return models.FeedPost{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	fields := cur.FeedPostFields
	fields.Content = content
	if err := e.check(fields); err != nil {
		return models.FeedPost{}, e.reject(ctx, err)
	}
	if fields.Content = Sanitize(fields.Content); fields.Content == "" {
		return models.FeedPost{}, e.reject(ctx, invalid("Content", "required"))
	}

	p, _ := e.updatePost(id, func(p *models.FeedPost) { p.FeedPostFields = fields })
	e.persistLater(store.KeyFeed)
	e.dispatch(ctx, queue.UpdateFeedPost{ID: id, Fields: fields}, id, fields.UserID)
	return p, nil
}

// DeletePost removes a post together with its likes and comments.
func (e *Engine) DeletePost(ctx context.Context, id models.ID) error {
	var (
		removed models.FeedPost
		found   bool
	)
	e.feed.do(func(ps *[]models.FeedPost) {
		i := slices.IndexFunc(*ps, func(p models.FeedPost) bool { return p.ID == id })
		if i < 0 {
			return
		}
		removed, found = (*ps)[i], true
		*ps = slices.Delete(*ps, i, i+1)
	})
	if !found {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	e.persistLater(store.KeyFeed)

	for _, l := range removed.Likes {
		e.dispatch(ctx, queue.DeleteFeedLike{ID: l.ID}, l.ID)
	}
	for _, c := range removed.Comments {
		e.dispatch(ctx, queue.DeleteFeedComment{ID: c.ID}, c.ID)
	}
	e.dispatch(ctx, queue.DeleteFeedPost{ID: id}, id)
	return nil
}

// LikePost records user's like. Liking twice is a no-op.
func (e *Engine) LikePost(ctx context.Context, postID, user models.ID) (models.FeedPost, error) {
	p, ok := e.post(postID)
	if !ok {
		return models.FeedPost{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	if _, ok := e.User(user); !ok {
		return models.FeedPost{}, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}
	if p.LikedBy(user) {
		return p, nil
	}

	fields := models.FeedLikeFields{PostID: postID, UserID: user}
	id, createdAt := e.create(ctx, func(local models.ID) queue.Mutation {
		return queue.InsertFeedLike{LocalID: local, Fields: fields}
	}, postID, user)
	like := models.FeedLike{ID: id, CreatedAt: createdAt, FeedLikeFields: fields}
	p, ok = e.updatePost(postID, func(p *models.FeedPost) {
		if !p.LikedBy(user) {
			p.Likes = append(p.Likes, like)
		}
	})
	if !ok {
		return models.FeedPost{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	e.persistLater(store.KeyFeed)
	return p, nil
}

func (e *Engine) UnlikePost(ctx context.Context, postID, user models.ID) (models.FeedPost, error) {
	var like models.FeedLike
	p, ok := e.updatePost(postID, func(p *models.FeedPost) {
		i := slices.IndexFunc(p.Likes, func(l models.FeedLike) bool { return l.UserID == user })
		if i < 0 {
			return
		}
		like = p.Likes[i]
		p.Likes = slices.Delete(p.Likes, i, i+1)
	})
	if !ok {
		return models.FeedPost{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	if like.ID.IsZero() {
		return p, nil
	}
	e.persistLater(store.KeyFeed)
	e.dispatch(ctx, queue.DeleteFeedLike{ID: like.ID}, like.ID)
	return p, nil
}

func (e *Engine) CommentPost(ctx context.Context, postID, user models.ID, content string) (models.FeedComment, error) {
	if _, ok := e.post(postID); !ok {
		return models.FeedComment{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	u, ok := e.User(user)
	if !ok {
		return models.FeedComment{}, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}
	fields := models.FeedCommentFields{PostID: postID, UserID: user, UserName: u.Name, Content: content}
	if err := e.check(fields); err != nil {
		return models.FeedComment{}, e.reject(ctx, err)
	}
	if fields.Content = Sanitize(fields.Content); fields.Content == "" {
		return models.FeedComment{}, e.reject(ctx, invalid("Content", "required"))
	}

	id, createdAt := e.create(ctx, func(local models.ID) queue.Mutation {
		return queue.InsertFeedComment{LocalID: local, Fields: fields}
	}, postID, user)
	c := models.FeedComment{ID: id, CreatedAt: createdAt, FeedCommentFields: fields}
	if _, ok := e.updatePost(postID, func(p *models.FeedPost) { p.Comments = upsert(p.Comments, c, commentID) }); !ok {
		return models.FeedComment{}, fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	e.persistLater(store.KeyFeed)
	return c, nil
}

func (e *Engine) DeleteComment(ctx context.Context, postID, commentID models.ID) error {
	var found bool
	_, ok := e.updatePost(postID, func(p *models.FeedPost) {
		n := len(p.Comments)
		p.Comments = slices.DeleteFunc(p.Comments, func(c models.FeedComment) bool { return c.ID == commentID })
		found = len(p.Comments) != n
	})
	if !ok || !found {
		return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	e.persistLater(store.KeyFeed)
	e.dispatch(ctx, queue.DeleteFeedComment{ID: commentID}, commentID)
	return nil
}

func postID(p *models.FeedPost) *models.ID { return &p.ID }

func likeID(l *models.FeedLike) *models.ID { return &l.ID }

func commentID(c *models.FeedComment) *models.ID { return &c.ID }
