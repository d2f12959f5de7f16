package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/votara/votara-coordinator/crypto/ethereum"
	"github.com/votara/votara-coordinator/log"
	"github.com/votara/votara-coordinator/util"
)

const (
	// nonceTTL is how long an issued login nonce stays valid.
	nonceTTL = 5 * time.Minute
	// loginDomain is the domain tag embedded in the canonical login message.
	loginDomain = "votara.login"
)

type contextKey string

// addressContextKey carries the authenticated address through the request
// context.
const addressContextKey contextKey = "authAddress"

// canonicalLoginMessage is the exact byte string the client signs with
// EIP-191 personal_sign. Every field of the login message is pinned, so a
// signature cannot be replayed across domains, chains or nonces.
func canonicalLoginMessage(m *LoginMessage) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%d:%d",
		m.Domain, strings.ToLower(m.Address), m.Nonce, m.ChainID, m.IssuedAt))
}

// signNonce builds the stateless nonce envelope: base64(nonce|issuedAt) plus
// base64(HMAC-SHA256(serverKey, nonce|issuedAt)). The server keeps no nonce
// state; the envelope itself proves issuance.
func (a *API) signNonce(nonce string, issuedAt int64) string {
	payload := fmt.Sprintf("%s|%d", nonce, issuedAt)
	mac := hmac.New(sha256.New, a.serverKey)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) +
		"." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verifySignedNonce checks the envelope HMAC and expiry and returns the
// embedded nonce.
func (a *API) verifySignedNonce(signedNonce string) (string, error) {
	parts := strings.Split(signedNonce, ".")
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed nonce envelope")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("malformed nonce payload: %w", err)
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("malformed nonce mac: %w", err)
	}
	mac := hmac.New(sha256.New, a.serverKey)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), gotMAC) {
		return "", fmt.Errorf("nonce envelope mac mismatch")
	}
	fields := strings.Split(string(payload), "|")
	if len(fields) != 2 {
		return "", fmt.Errorf("malformed nonce payload")
	}
	issuedAt, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("malformed nonce timestamp: %w", err)
	}
	if time.Since(time.Unix(issuedAt, 0)) > nonceTTL {
		return "", fmt.Errorf("nonce expired")
	}
	return fields[0], nil
}

// authNonce issues a fresh login nonce with its signed envelope.
// GET /auth/nonce
func (a *API) authNonce(w http.ResponseWriter, r *http.Request) {
	nonce := util.RandomHex(16)
	httpWriteJSON(w, &NonceResponse{
		Nonce:       nonce,
		SignedNonce: a.signNonce(nonce, time.Now().Unix()),
	})
}

// authVerify exchanges a signed login message for a bearer token.
// POST /auth/verify
func (a *API) authVerify(w http.ResponseWriter, r *http.Request) {
	req := &VerifyRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	nonce, err := a.verifySignedNonce(req.SignedNonce)
	if err != nil {
		ErrInvalidNonce.WithErr(err).Write(w)
		return
	}
	if req.Message.Nonce != nonce {
		ErrInvalidNonce.With("nonce does not match envelope").Write(w)
		return
	}
	if req.Message.Domain != loginDomain {
		ErrInvalidSignature.Withf("unexpected domain %q", req.Message.Domain).Write(w)
		return
	}
	if req.Message.ChainID != a.chainID {
		ErrInvalidSignature.Withf("unexpected chainId %d", req.Message.ChainID).Write(w)
		return
	}
	recovered, err := ethereum.AddrFromSignature(canonicalLoginMessage(&req.Message), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if !strings.EqualFold(recovered.Hex(), req.Message.Address) {
		ErrInvalidSignature.With("signature does not match the claimed address").Write(w)
		return
	}
	address := strings.ToLower(recovered.Hex())
	if err := a.storage.UpsertUser(r.Context(), address); err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	expiresAt := time.Now().Add(a.tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     address,
		"chainId": a.chainID,
		"iat":     time.Now().Unix(),
		"exp":     expiresAt.Unix(),
	})
	signed, err := token.SignedString(a.serverKey)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("user logged in", "address", address)
	httpWriteJSON(w, &VerifyResponse{
		Token:     signed,
		Address:   address,
		ExpiresAt: expiresAt.Unix(),
	})
}

// requireAuth validates the bearer token and injects the authenticated
// address into the request context. It never touches the store.
func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ErrUnauthorized.With("missing bearer token").Write(w)
			return
		}
		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "),
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return a.serverKey, nil
			},
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			ErrUnauthorized.Withf("invalid token: %v", err).Write(w)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			ErrUnauthorized.With("malformed claims").Write(w)
			return
		}
		address, _ := claims["sub"].(string)
		if address == "" {
			ErrUnauthorized.With("missing subject").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), addressContextKey, strings.ToLower(address))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggedAddress returns the authenticated address of the request, set by
// requireAuth.
func loggedAddress(r *http.Request) string {
	address, _ := r.Context().Value(addressContextKey).(string)
	return address
}
