package mdcrypto_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"

	"github.com/flupzor/microdesc-cache/pkg/microdesc/mdcrypto"
)

func Test_DecodeOnionKey_DecodesValidPEMBlock(t *testing.T) {
	t.Parallel()

	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	der := x509.MarshalPKCS1PublicKey(&priv.PublicKey)
	block := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der})

	key, err := mdcrypto.DecodeOnionKey(block)
	if err != nil {
		t.Fatalf("DecodeOnionKey: %v", err)
	}

	if key.Key.N.Cmp(priv.PublicKey.N) != 0 {
		t.Fatal("decoded modulus does not match the original key")
	}
}

func Test_DecodeOnionKey_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := mdcrypto.DecodeOnionKey([]byte("not a pem block"))
	if !errors.Is(err, mdcrypto.ErrInvalidKey) {
		t.Fatalf("err = %v, want ErrInvalidKey", err)
	}
}

func Test_Release_IsSafeOnNil(t *testing.T) {
	t.Parallel()

	mdcrypto.Release(nil)
}
