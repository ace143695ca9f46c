package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"macdesigns/internal/database"
	"macdesigns/internal/gate"
)

func testDB(t *testing.T) (*SessionStore, *database.DB) {
	t.Helper()
	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := NewSessionStore(db, nil)
	t.Cleanup(func() { store.Close() })
	return store, db
}

func TestCreateAndValidateSession(t *testing.T) {
	store, _ := testDB(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "profile-1", "127.0.0.1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, valid, err := store.ValidateSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if !valid {
		t.Fatal("session should be valid")
	}
	if got.ProfileID != "profile-1" {
		t.Errorf("profile = %q, want profile-1", got.ProfileID)
	}
	if got.Authenticated {
		t.Error("new session should not be authenticated")
	}
}

func TestDeleteSession(t *testing.T) {
	store, _ := testDB(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "p", "127.0.0.1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	_, valid, err := store.ValidateSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if valid {
		t.Error("session should be invalid after delete")
	}
}

func TestInvalidSession(t *testing.T) {
	store, _ := testDB(t)

	_, valid, err := store.ValidateSession(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if valid {
		t.Error("nonexistent session should be invalid")
	}
}

func TestSessionFlag(t *testing.T) {
	store, _ := testDB(t)
	ctx := context.Background()

	sess, err := store.CreateSession(ctx, "p", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var flag gate.FlagStore = store.Flag(sess.ID)
	ok, err := flag.Authenticated(ctx)
	if err != nil || ok {
		t.Fatalf("Authenticated = %v, %v; want false, nil", ok, err)
	}

	if err := flag.SetAuthenticated(ctx); err != nil {
		t.Fatalf("SetAuthenticated: %v", err)
	}
	ok, err = flag.Authenticated(ctx)
	if err != nil || !ok {
		t.Fatalf("Authenticated = %v, %v; want true, nil", ok, err)
	}

	other, err := store.CreateSession(ctx, "p", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if ok, _ := store.IsAuthenticated(ctx, other.ID); ok {
		t.Error("flag leaked to a sibling session of the same profile")
	}

	if err := store.MarkAuthenticated(ctx, "missing"); err == nil {
		t.Error("expected error marking an unknown session")
	}
}

func TestIPHashing(t *testing.T) {
	h1 := hashIP("192.168.1.1", "salt1")
	h2 := hashIP("192.168.1.1", "salt2")
	h3 := hashIP("192.168.1.1", "salt1")

	if h1 == h2 {
		t.Error("different salts should produce different hashes")
	}
	if h1 != h3 {
		t.Error("same salt and IP should produce same hash")
	}
}

func TestCleanup(t *testing.T) {
	store, db := testDB(t)
	ctx := context.Background()

	stale := time.Now().Add(-SessionExpiry - time.Hour).UnixMilli()
	_, err := db.Exec(db.Rebind(
		"INSERT INTO sessions (id, profile_id, started_at, last_seen_at, ip_hash) VALUES (?, ?, ?, ?, ?)"),
		"old-session", "p", stale, stale, "hash")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	fresh, err := store.CreateSession(ctx, "p", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	n, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d sessions, want 1", n)
	}
	if _, valid, _ := store.ValidateSession(ctx, fresh.ID); !valid {
		t.Error("fresh session should survive cleanup")
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	store, db := testDB(t)
	ctx := context.Background()

	stale := time.Now().Add(-SessionExpiry - time.Minute).UnixMilli()
	_, err := db.Exec(db.Rebind(
		"INSERT INTO sessions (id, profile_id, started_at, last_seen_at) VALUES (?, ?, ?, ?)"),
		"idle", "p", stale, stale)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, valid, err := store.ValidateSession(ctx, "idle")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if valid {
		t.Error("idle session should be expired")
	}
}

func TestProfileTokenRoundTrip(t *testing.T) {
	tokens, err := NewProfileTokens("test-secret")
	if err != nil {
		t.Fatalf("NewProfileTokens: %v", err)
	}

	id := NewProfileID()
	tok, err := tokens.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != id {
		t.Errorf("profile = %q, want %q", got, id)
	}
	if tokens.MaxAge() != 365*24*3600 {
		t.Errorf("MaxAge = %d", tokens.MaxAge())
	}
}

func TestProfileTokenRejectsForeignSignature(t *testing.T) {
	a, _ := NewProfileTokens("secret-a")
	b, _ := NewProfileTokens("secret-b")

	tok, err := a.Issue("p")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Parse(tok); err != ErrInvalidProfile {
		t.Errorf("Parse with wrong key = %v, want ErrInvalidProfile", err)
	}
	if _, err := a.Parse("garbage"); err != ErrInvalidProfile {
		t.Errorf("Parse garbage = %v, want ErrInvalidProfile", err)
	}
}

func TestProfileTokenRejectsExpired(t *testing.T) {
	tokens, _ := NewProfileTokens("s")
	claims := jwt.RegisteredClaims{
		Subject:   "p",
		Issuer:    profileIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tokens.Parse(tok); err != ErrInvalidProfile {
		t.Errorf("Parse expired = %v, want ErrInvalidProfile", err)
	}
}

func TestRandomProfileSecret(t *testing.T) {
	a, err := NewProfileTokens("")
	if err != nil {
		t.Fatalf("NewProfileTokens: %v", err)
	}
	b, _ := NewProfileTokens("")

	tok, _ := a.Issue("p")
	if _, err := b.Parse(tok); err == nil {
		t.Error("random secrets should differ between signers")
	}
}

func TestClientIP(t *testing.T) {
	cf := NewCloudflareIPs(nil, nil)
	defer cf.Close()
	cf.SetRanges("173.245.48.0/20", "not-a-cidr")

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "173.245.48.10:443"
	r.Header.Set("CF-Connecting-IP", "198.51.100.9")
	if got := cf.ClientIP(r); got != "198.51.100.9" {
		t.Errorf("trusted edge: got %s", got)
	}

	r.RemoteAddr = "203.0.113.1:5555"
	if got := cf.ClientIP(r); got != "203.0.113.1" {
		t.Errorf("untrusted source must not honour header: got %s", got)
	}

	var none *CloudflareIPs
	if got := none.ClientIP(r); !strings.HasPrefix(got, "203.0.113.1") {
		t.Errorf("nil ClientIP = %s", got)
	}
}
