package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ann@x.com", NormalizeEmail("  Ann@X.COM "))
	assert.Equal(t, "ann@x.com", NormalizeEmail("ａｎｎ@x.com"))
}

func TestChangedPasswordAfter(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var u User
	assert.False(t, u.ChangedPasswordAfter(issued), "never changed")

	before := issued.Add(-time.Minute)
	u.PasswordChangedAt = &before
	assert.False(t, u.ChangedPasswordAfter(issued))

	justBefore := issued.Add(-time.Millisecond)
	u.PasswordChangedAt = &justBefore
	assert.False(t, u.ChangedPasswordAfter(issued), "token minted one millisecond after the change mark")

	same := issued.Add(400 * time.Microsecond)
	u.PasswordChangedAt = &same
	assert.True(t, u.ChangedPasswordAfter(issued), "same millisecond counts as changed")

	after := issued.Add(400 * time.Millisecond)
	u.PasswordChangedAt = &after
	assert.True(t, u.ChangedPasswordAfter(issued))
}

func TestRoleValid(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("root").Valid())
}

func TestApplyFindOptions(t *testing.T) {
	o := ApplyFindOptions(WithPassword(), nil, IncludeInactive())
	assert.True(t, o.WithPassword)
	assert.True(t, o.IncludeInactive)
	assert.Equal(t, FindOptions{}, ApplyFindOptions())
}
