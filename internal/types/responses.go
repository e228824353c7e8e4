package types

import "time"

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Progress struct {
	Total   int64 `json:"total"`
	Done    int64 `json:"done"`
	Percent int   `json:"percent"`
}

// NewProgress computes completion over non-cancelled tasks.
func NewProgress(total, done int64) Progress {
	p := Progress{Total: total, Done: done}
	if total > 0 {
		p.Percent = int(done * 100 / total)
	}
	return p
}

type MemberResponse struct {
	User     UserResponse `json:"user"`
	Role     Role         `json:"role"`
	JoinedAt time.Time    `json:"joined_at"`
}

type ProjectResponse struct {
	ID          uint             `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	OwnerID     uint             `json:"owner_id"`
	Owner       *UserResponse    `json:"owner,omitempty"`
	Role        Role             `json:"role"`
	Progress    Progress         `json:"progress"`
	Members     []MemberResponse `json:"members,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

type TaskResponse struct {
	ID           uint           `json:"id"`
	ProjectID    uint           `json:"project_id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Status       TaskStatus     `json:"status"`
	Priority     TaskPriority   `json:"priority"`
	DueDate      *time.Time     `json:"due_date"`
	Creator      UserResponse   `json:"creator"`
	Assignees    []UserResponse `json:"assignees"`
	CommentCount int64          `json:"comment_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type CommentResponse struct {
	ID        uint         `json:"id"`
	TaskID    uint         `json:"task_id"`
	Content   string       `json:"content"`
	Author    UserResponse `json:"author"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
