package dto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func validationDetails(t *testing.T, err error) map[string]any {
	t.Helper()
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	require.Equal(t, "VALIDATION_FAILED", de.Code)
	return de.Details
}

func TestValidateRegister(t *testing.T) {
	require.NoError(t, Validate(RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "long-enough"}))

	details := validationDetails(t, Validate(RegisterRequest{Name: "  ", Email: "nope", Password: "short"}))
	assert.Equal(t, "is required", details["name"])
	assert.Equal(t, "must be a valid email address", details["email"])
	assert.Equal(t, "must be at least 8 characters", details["password"])
}

func TestValidateTicketEnums(t *testing.T) {
	require.NoError(t, Validate(CreateTicketRequest{Title: "VPN", Description: "down"}))
	require.NoError(t, Validate(CreateTicketRequest{Title: "VPN", Description: "down", Priority: "high"}))

	details := validationDetails(t, Validate(CreateTicketRequest{Title: "VPN", Description: "down", Priority: "urgent"}))
	assert.Equal(t, "must be one of Low, Medium, High", details["priority"])

	require.NoError(t, Validate(UpdateStatusRequest{Status: "in progress"}))
	require.NoError(t, Validate(UpdateStatusRequest{Status: "IN_PROGRESS"}))
	details = validationDetails(t, Validate(UpdateStatusRequest{Status: "Pending review"}))
	assert.Contains(t, details, "status")

	blank := "   "
	details = validationDetails(t, Validate(UpdateTicketRequest{Title: &blank}))
	assert.Contains(t, details, "title")
	require.NoError(t, Validate(UpdateTicketRequest{}))
}

func TestValidateAssignAndUsers(t *testing.T) {
	details := validationDetails(t, Validate(AssignTicketRequest{AssigneeID: "sam"}))
	assert.Equal(t, "must be a valid UUID", details["assignee_id"])
	require.NoError(t, Validate(AssignTicketRequest{AssigneeID: "7f1de9a4-6a3b-4a55-9d52-1b0f4c8c2a10"}))

	details = validationDetails(t, Validate(CreateUserRequest{Name: "Sam", Email: "sam@example.com", Password: "password1", RoleID: 7}))
	assert.Equal(t, "must be one of 1 2 3", details["role_id"])

	role := 2
	require.NoError(t, Validate(UpdateUserRequest{RoleID: &role}))
}
