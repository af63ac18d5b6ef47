package users

import "time"

type Role string

const (
	RoleClient     Role = "client"
	RoleSpecialist Role = "specialist"
	RoleEngineer   Role = "engineer"
	RoleMaster     Role = "master"
)

func (r Role) Title() string {
	switch r {
	case RoleClient:
		return "Заказчик"
	case RoleSpecialist:
		return "Специалист"
	case RoleEngineer:
		return "Инженер"
	case RoleMaster:
		return "Мастер"
	}
	return string(r)
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type User struct {
	ID         int64
	TelegramID int64
	Username   string
	FullName   string
	Role       Role
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Telegram struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}
