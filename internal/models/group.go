package models

import "time"

// Group represents a project group students join with a shared code.
type Group struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	ProjectID uint          `gorm:"not null;index" json:"project_id"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	JoinCode  string        `gorm:"size:16;uniqueIndex;not null" json:"join_code"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Members   []GroupMember `gorm:"foreignKey:GroupID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"members"`
}

// GroupMember links a student to a group, flagging the group leader.
type GroupMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index:idx_group_student,unique" json:"group_id"`
	StudentID uint      `gorm:"not null;index:idx_group_student,unique" json:"student_id"`
	IsLeader  bool      `gorm:"not null;default:false" json:"is_leader"`
	JoinedAt  time.Time `json:"joined_at"`
	Student   Student   `gorm:"foreignKey:StudentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// Roster returns the members a given student evaluates: everyone in the
// group except the acting student. Self-evaluation is disallowed.
func (g Group) Roster(actingStudentID uint) []GroupMember {
	roster := make([]GroupMember, 0, len(g.Members))
	for _, member := range g.Members {
		if member.StudentID == actingStudentID {
			continue
		}
		roster = append(roster, member)
	}
	return roster
}

// HasMember reports whether the student belongs to the group.
func (g Group) HasMember(studentID uint) bool {
	for _, member := range g.Members {
		if member.StudentID == studentID {
			return true
		}
	}
	return false
}
