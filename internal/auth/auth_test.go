package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/skybound-ai/gateway/internal/model"
)

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secret1", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.True(t, VerifyPassword("secret1", hash))
	assert.False(t, VerifyPassword("wrong", hash))
	assert.False(t, VerifyPassword("secret1", "not-a-hash"))
}

func TestHashPassword_Salted(t *testing.T) {
	t.Parallel()

	a, err := HashPassword("same", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("same", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, VerifyPassword("same", a))
	assert.True(t, VerifyPassword("same", b))
}

func TestHashPassword_CostOutOfRange(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("secret1", 1)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, cost)
}

func TestNewTokenService_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService("super-secret", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t)
	user := &model.User{ID: "user-123", Email: "a@x.com"}

	tok, err := svc.Issue(user)
	require.NoError(t, err)

	claims, ok := svc.Verify(tok)
	require.True(t, ok)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t)
	tok, err := svc.Issue(&model.User{ID: "u1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, ok := svc.Verify(tok)
	assert.False(t, ok)
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t)
	tok, err := svc.Issue(&model.User{ID: "u1"})
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	for i := 0; i < len(sig)-1; i++ {
		tampered := make([]byte, len(sig))
		copy(tampered, sig)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}

		_, ok := svc.Verify(parts[0] + "." + parts[1] + "." + string(tampered))
		assert.False(t, ok, "byte %d", i)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	other, err := NewTokenService("other-secret", time.Hour)
	require.NoError(t, err)
	tok, err := other.Issue(&model.User{ID: "u2"})
	require.NoError(t, err)

	_, ok := newTestTokenService(t).Verify(tok)
	assert.False(t, ok)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "u3",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, ok := newTestTokenService(t).Verify(tok)
	assert.False(t, ok)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	svc := newTestTokenService(t)
	for _, tok := range []string{"", "not.a.jwt", "garbage"} {
		_, ok := svc.Verify(tok)
		assert.False(t, ok, tok)
	}
}

func TestExtractBearer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"BEARER abc", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"abc", "", false},
	}

	for _, tt := range tests {
		got, ok := ExtractBearer(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
