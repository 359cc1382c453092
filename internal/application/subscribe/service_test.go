package subscribe

import (
	"context"
	"errors"
	"testing"

	"easyflip-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) SendWelcome(ctx context.Context, toEmail, name string) error {
	m.sent = append(m.sent, toEmail)
	return m.err
}

func setupSubscribeTest(t *testing.T) (*Service, *fakeMailer) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Subscriber{}))
	m := &fakeMailer{}
	return &Service{DB: db, Mailer: m}, m
}

func TestSubscribe_CreatesAndWelcomesOnce(t *testing.T) {
	svc, mailer := setupSubscribeTest(t)
	ctx := context.Background()

	sub, created, err := svc.Subscribe(ctx, Input{Email: " Sam@Example.com ", Name: "Sam", Source: "landing"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "sam@example.com", sub.Email)
	assert.Equal(t, "landing", sub.Source)

	again, created, err := svc.Subscribe(ctx, Input{Email: "sam@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sub.ID, again.ID)
	assert.Equal(t, "Sam", again.Name)

	assert.Equal(t, []string{"sam@example.com"}, mailer.sent)

	var n int64
	svc.DB.Model(&domain.Subscriber{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestSubscribe_DefaultSource(t *testing.T) {
	svc, _ := setupSubscribeTest(t)
	sub, _, err := svc.Subscribe(context.Background(), Input{Email: "a@b.co"})
	require.NoError(t, err)
	assert.Equal(t, "website", sub.Source)
}

func TestSubscribe_MailFailureDoesNotFail(t *testing.T) {
	svc, mailer := setupSubscribeTest(t)
	mailer.err = errors.New("brevo down")
	_, created, err := svc.Subscribe(context.Background(), Input{Email: "a@b.co"})
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSubscribe_Validation(t *testing.T) {
	svc, mailer := setupSubscribeTest(t)
	_, _, err := svc.Subscribe(context.Background(), Input{Email: "nope"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}
	_, _, err = svc.Subscribe(context.Background(), Input{Email: "a@b.co", Name: string(long)})
	assert.ErrorIs(t, err, ErrNameTooLong)
	assert.Empty(t, mailer.sent)
}
