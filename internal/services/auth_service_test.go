package services

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setArgon2TestParams() {
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("argon2.salt_length", 16)
}

func TestPasswordHashing(t *testing.T) {
	setArgon2TestParams()

	hash, err := hashPassword("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", hash)

	assert.True(t, verifyPassword("password123", hash))
	assert.False(t, verifyPassword("password124", hash))
	assert.False(t, verifyPassword("password123", "not-a-valid-hash"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := NewAuthService(db, nil)

	mock.ExpectQuery("SELECT id, email, name, phone_number, wallet, password FROM users WHERE email = \\$1").
		WithArgs("ghost@example.com").
		WillReturnError(sqlmock.ErrCancelled)

	body := bytes.NewBufferString(`{"email":"ghost@example.com","password":"password123"}`)
	r := httptest.NewRequest("POST", "/auth/login", body)
	w := httptest.NewRecorder()

	service.Login(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutBlacklistsToken(t *testing.T) {
	viper.Set("jwt.expiry_hours", 24)

	rdb, rmock := redismock.NewClientMock()
	service := NewAuthService(nil, rdb)

	rmock.ExpectSet("blacklist:sometoken", "1", 24*time.Hour).SetVal("OK")

	r := httptest.NewRequest("POST", "/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer sometoken")
	w := httptest.NewRecorder()

	service.Logout(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestLogoutWithoutTokenStillSucceeds(t *testing.T) {
	service := NewAuthService(nil, nil)

	r := httptest.NewRequest("POST", "/auth/logout", nil)
	w := httptest.NewRecorder()

	service.Logout(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
