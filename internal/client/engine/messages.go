package engine

import "github.com/dmitrijs2005/goalboard/internal/client/models"

var autoPostMessages = map[models.Category][]string{
	models.CategoryReviews: {
		"Just landed another 5-star review!",
		"Another happy customer left a review.",
		"Review in the bag, keep them coming!",
		"One more glowing review for the team.",
		"Customers are talking, new review posted!",
	},
	models.CategoryCallbacks: {
		"Callback done, the pipeline keeps growing.",
		"Another callback completed!",
		"Followed up and closed the loop.",
		"Callback logged, on to the next one.",
		"Phone time pays off, callback done!",
	},
}

// autoPost returns a random message for category, or false when the category
// does not post automatically.
func (e *Engine) autoPost(category models.Category) (string, bool) {
	pool := autoPostMessages[category]
	if len(pool) == 0 {
		return "", false
	}
	return pool[e.pick(len(pool))], true
}
