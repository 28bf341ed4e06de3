package publish

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_NATSMsg(t *testing.T) {
	m := Message{
		Subject: "corpus.rules",
		RunID:   "3f2a9c1e-0000-4000-8000-000000000001",
		Format:  "json",
		Data:    []byte(`{"sections":[]}`),
	}

	msg := m.natsMsg()
	assert.Equal(t, "corpus.rules", msg.Subject)
	assert.Equal(t, m.Data, msg.Data)
	assert.Equal(t, m.RunID, msg.Header.Get(HeaderMsgID))
	assert.Equal(t, "json", msg.Header.Get(HeaderFormat))

	sum := sha256.Sum256(m.Data)
	assert.Equal(t, hex.EncodeToString(sum[:]), msg.Header.Get(HeaderDigest))
	assert.Equal(t, m.Digest(), msg.Header.Get(HeaderDigest))
}

func TestMessage_Defaults(t *testing.T) {
	msg := Message{Data: []byte("x")}.natsMsg()

	assert.Equal(t, DefaultSubject, msg.Subject)
	assert.Empty(t, msg.Header.Get(HeaderMsgID))
	assert.Empty(t, msg.Header.Get(HeaderFormat))
	assert.NotEmpty(t, msg.Header.Get(HeaderDigest))
}

func TestMessage_DigestStable(t *testing.T) {
	a := Message{Data: []byte("manifest")}
	b := Message{Data: []byte("manifest"), RunID: "other"}
	assert.Equal(t, a.Digest(), b.Digest())
	assert.NotEqual(t, a.Digest(), Message{Data: []byte("manifest2")}.Digest())
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to NATS")
}
