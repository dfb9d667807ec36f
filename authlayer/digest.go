// Package authlayer provides an illustrative Digest-style
// authentication Layer. It demonstrates the Layer decorator shape
// from spec.md §4.G/§1; it is an example handler, not a transport
// security guarantee — the core makes no promise about it.
package authlayer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ivarsson-tel/fastagi"
)

// Config configures a Digest layer. Nonce is read from the handshake
// URI's query parameters (the dialplan passes it when invoking the
// AGI application); Response is read from a channel variable the
// dialplan sets from the caller-supplied credential before invoking
// AGI, since AGI itself has no way to prompt for free-form input
// outside of channel variables and DTMF.
type Config struct {
	// Secret is the shared key used to compute the expected digest.
	Secret string

	// NonceParam is the query-parameter name carrying the challenge
	// nonce. Defaults to "nonce".
	NonceParam string

	// ResponseVariable is the channel variable name carrying the
	// caller-supplied digest response. Defaults to "DIGEST_RESPONSE".
	ResponseVariable string
}

func (c Config) nonceParam() string {
	if c.NonceParam == "" {
		return "nonce"
	}
	return c.NonceParam
}

func (c Config) responseVariable() string {
	if c.ResponseVariable == "" {
		return "DIGEST_RESPONSE"
	}
	return c.ResponseVariable
}

// New builds a Layer that denies the request unless the caller's
// digest response matches the expected value for the handshake's
// nonce. On denial it sends a Verbose explaining why and returns
// without calling the wrapped Handler, per spec.md §8's S7 scenario.
func New(cfg Config) fastagi.Layer {
	return func(next fastagi.Handler) fastagi.Handler {
		return fastagi.HandlerFunc(func(ctx context.Context, conn *fastagi.Connection, req *fastagi.Request) error {
			nonce := req.Query.Get(cfg.nonceParam())

			response, err := conn.GetVariable(cfg.responseVariable())
			if err != nil {
				_ = conn.Verbose("digest auth: failed to read response variable", 1)
				return nil
			}

			if !hmac.Equal([]byte(response), []byte(expectedDigest(cfg.Secret, nonce))) {
				_ = conn.Verbose("digest auth: denied", 1)
				return nil
			}

			return next.Handle(ctx, conn, req)
		})
	}
}

func expectedDigest(secret, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
