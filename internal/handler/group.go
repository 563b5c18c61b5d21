package handler

import (
	"context"
	"net/http"

	"github.com/forgo/occasions/api/internal/model"
)

// GroupService is the group behaviour the handler depends on
type GroupService interface {
	List(ctx context.Context) ([]*model.Group, error)
	Get(ctx context.Context, id string) (*model.GroupData, error)
	CountMembers(ctx context.Context, id string) (int, error)
	Create(ctx context.Context, req *model.CreateGroupRequest) (*model.GroupData, error)
	Update(ctx context.Context, id string, req *model.UpdateGroupRequest) (*model.Group, error)
	Delete(ctx context.Context, id string) error
	TransferAdmin(ctx context.Context, id, newAdminID string) (*model.Group, error)
	AddMember(ctx context.Context, id, userID string) (*model.GroupData, error)
	TransferMember(ctx context.Context, id, userID, newGroupID string) (*model.GroupData, error)
	RemoveMember(ctx context.Context, id, userID string) error
}

const (
	groupTable = "user_group"
	userTable  = "user"
)

// GroupHandler handles group HTTP requests
type GroupHandler struct {
	svc GroupService
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(svc GroupService) *GroupHandler {
	return &GroupHandler{svc: svc}
}

// List handles GET /v1/groups
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.List(r.Context())
	if err != nil {
		h.handleError(w, err, "list groups")
		return
	}

	WriteCollection(w, http.StatusOK, groups, len(groups), nil)
}

// Create handles POST /v1/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateGroupRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if req.AdminID != "" {
		id, ok := recordID(req.AdminID, userTable)
		if !ok {
			WriteError(w, model.NewBadRequestError("invalid admin id"))
			return
		}
		req.AdminID = id
	}

	data, err := h.svc.Create(r.Context(), &req)
	if err != nil {
		h.handleError(w, err, "create group")
		return
	}

	WriteData(w, http.StatusCreated, data, groupLinks(data.Group.ID))
}

// Get handles GET /v1/groups/{groupId}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	data, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get group")
		return
	}

	WriteData(w, http.StatusOK, data, groupLinks(data.Group.ID))
}

// Members handles GET /v1/groups/{groupId}/members
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	data, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "list members")
		return
	}

	WriteCollection(w, http.StatusOK, data.Members, len(data.Members), nil)
}

// CountMembers handles GET /v1/groups/{groupId}/members/count
func (h *GroupHandler) CountMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	n, err := h.svc.CountMembers(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "count members")
		return
	}

	WriteData(w, http.StatusOK, CountResponse{Count: n}, nil)
}

// Update handles PATCH /v1/groups/{groupId}
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	var req model.UpdateGroupRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	group, err := h.svc.Update(r.Context(), id, &req)
	if err != nil {
		h.handleError(w, err, "update group")
		return
	}

	WriteData(w, http.StatusOK, group, groupLinks(group.ID))
}

// Delete handles DELETE /v1/groups/{groupId}
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.handleError(w, err, "delete group")
		return
	}

	WriteNoContent(w)
}

// TransferAdmin handles POST /v1/groups/{groupId}/admin
func (h *GroupHandler) TransferAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	var req model.TransferGroupAdminRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	newAdmin, ok := recordID(req.NewAdminID, userTable)
	if !ok {
		WriteError(w, model.NewBadRequestError("invalid new_admin_id"))
		return
	}

	group, err := h.svc.TransferAdmin(r.Context(), id, newAdmin)
	if err != nil {
		h.handleError(w, err, "transfer group admin")
		return
	}

	WriteData(w, http.StatusOK, group, groupLinks(group.ID))
}

// AddMember handles POST /v1/groups/{groupId}/members
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}

	var req model.GroupMemberRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	userID, ok := recordID(req.UserID, userTable)
	if !ok {
		WriteError(w, model.NewBadRequestError("invalid user_id"))
		return
	}

	data, err := h.svc.AddMember(r.Context(), id, userID)
	if err != nil {
		h.handleError(w, err, "add member")
		return
	}

	WriteData(w, http.StatusOK, data, groupLinks(data.Group.ID))
}

// TransferMember handles POST /v1/groups/{groupId}/members/{userId}/transfer
func (h *GroupHandler) TransferMember(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}
	userID, ok := recordPathID(w, r, "userId", userTable)
	if !ok {
		return
	}

	var req model.TransferGroupMemberRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	newGroup, ok := recordID(req.NewGroupID, groupTable)
	if !ok {
		WriteError(w, model.NewBadRequestError("invalid new_group_id"))
		return
	}

	data, err := h.svc.TransferMember(r.Context(), id, userID, newGroup)
	if err != nil {
		h.handleError(w, err, "transfer member")
		return
	}

	WriteData(w, http.StatusOK, data, groupLinks(data.Group.ID))
}

// RemoveMember handles DELETE /v1/groups/{groupId}/members/{userId}
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, ok := recordPathID(w, r, "groupId", groupTable)
	if !ok {
		return
	}
	userID, ok := recordPathID(w, r, "userId", userTable)
	if !ok {
		return
	}

	if err := h.svc.RemoveMember(r.Context(), id, userID); err != nil {
		h.handleError(w, err, "remove member")
		return
	}

	WriteNoContent(w)
}

// handleError converts service errors to HTTP responses
func (h *GroupHandler) handleError(w http.ResponseWriter, err error, operation string) {
	WriteError(w, MapServiceErrorWithContext(err, operation))
}

func groupLinks(id string) map[string]string {
	return map[string]string{
		"self":    "/v1/groups/" + id,
		"members": "/v1/groups/" + id + "/members",
	}
}
