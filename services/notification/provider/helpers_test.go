package provider

import (
	"testing"

	"lecturenotify/domain"
	"lecturenotify/pkg/vault"

	"github.com/stretchr/testify/require"
)

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New("provider-tests")
	require.NoError(t, err)
	return v
}

func seal(t *testing.T, v *vault.Vault, plaintext string) string {
	t.Helper()
	ct, err := v.Encrypt(plaintext)
	require.NoError(t, err)
	return ct
}

func samplePayload() *domain.ReminderPayload {
	return &domain.ReminderPayload{
		CourseID:       7,
		ScheduleID:     42,
		CourseTitle:    "Distributed Systems",
		CourseCode:     "CS451",
		Date:           "2026-10-16",
		Time:           "09:30:00",
		Venue:          "Hall B",
		RecipientName:  "Ada",
		RecipientEmail: "ada@example.com",
		RecipientPhone: "+2348012345678",
		DeviceToken:    "device-token-1",
		RecipientRole:  domain.RoleStudent,
	}
}

func requireCategory(t *testing.T, err error, want domain.ErrorCategory) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, domain.CategoryOf(err), "error: %v", err)
}
