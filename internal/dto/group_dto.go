package dto

import (
	"time"

	"github.com/noah-isme/sman-go-api/internal/models"
)

// GroupCreateRequest describes the payload for creating a project group.
type GroupCreateRequest struct {
	ProjectID uint   `json:"project_id" validate:"required,gt=0"`
	Name      string `json:"name" validate:"required,min=2,max=255"`
}

// GroupJoinRequest describes the payload for joining a group by code.
type GroupJoinRequest struct {
	JoinCode string `json:"join_code" validate:"required,min=4,max=16"`
}

// MemberResponse serializes one group member.
type MemberResponse struct {
	StudentID       uint      `json:"student_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	IsLeader        bool      `json:"is_leader"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	JoinedAt        time.Time `json:"joined_at"`
}

// GroupResponse is returned to API clients when viewing groups.
type GroupResponse struct {
	ID        uint             `json:"id"`
	ProjectID uint             `json:"project_id"`
	Name      string           `json:"name"`
	JoinCode  string           `json:"join_code"`
	Members   []MemberResponse `json:"members"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewMemberResponse converts a GroupMember model into a DTO.
func NewMemberResponse(model models.GroupMember) MemberResponse {
	return MemberResponse{
		StudentID:       model.StudentID,
		FirstName:       model.Student.FirstName,
		LastName:        model.Student.LastName,
		IsLeader:        model.IsLeader,
		ProfileImageURL: model.Student.ProfileImageURL,
		JoinedAt:        model.JoinedAt,
	}
}

// NewMemberResponseSlice converts member models into DTOs.
func NewMemberResponseSlice(members []models.GroupMember) []MemberResponse {
	responses := make([]MemberResponse, 0, len(members))
	for _, member := range members {
		responses = append(responses, NewMemberResponse(member))
	}

	return responses
}

// NewGroupResponse converts a Group model into a DTO.
func NewGroupResponse(model models.Group) GroupResponse {
	return GroupResponse{
		ID:        model.ID,
		ProjectID: model.ProjectID,
		Name:      model.Name,
		JoinCode:  model.JoinCode,
		Members:   NewMemberResponseSlice(model.Members),
		CreatedAt: model.CreatedAt,
	}
}

// NewGroupResponseSlice converts group models into DTOs.
func NewGroupResponseSlice(groups []models.Group) []GroupResponse {
	responses := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		responses = append(responses, NewGroupResponse(group))
	}

	return responses
}
