package domain

import "time"

// TaskQuery is the filter sent to the task source.
type TaskQuery struct {
	CreatedBefore         time.Time
	AssigneeTeamIDs       []int
	PageSize              int
	Limit                 int
	OrderBy               string
	OrderMode             string
	IncludeCommentStats   bool
	IncludeCompanyUserIDs bool
	IncludeCustomFields   bool
	IncludeSubTasks       bool
}

// DefaultTaskQuery returns the filter shared by both reports: created before the cutoff,
// assigned to the team, oldest first, with custom fields and subtasks included.
func DefaultTaskQuery(createdBefore time.Time, teamID int) TaskQuery {
	return TaskQuery{
		CreatedBefore:         createdBefore,
		AssigneeTeamIDs:       []int{teamID},
		OrderBy:               "createdAt",
		OrderMode:             "asc",
		IncludeCommentStats:   true,
		IncludeCompanyUserIDs: true,
		IncludeCustomFields:   true,
		IncludeSubTasks:       true,
	}
}
