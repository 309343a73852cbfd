package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelDigestDeterminism(t *testing.T) {
	data := []byte("input-node name=input dim=4\n")

	d1 := ModelDigest(data)
	d2 := ModelDigest(data)

	assert.Equal(t, d1, d2, "ModelDigest must be deterministic")
	assert.Len(t, d1, 64, "SHA-256 hex is 64 characters")
}

func TestModelDigestCoversExactBytes(t *testing.T) {
	d1 := ModelDigest([]byte("input-node name=input dim=4\n"))
	d2 := ModelDigest([]byte("input-node name=input dim=4"))

	assert.NotEqual(t, d1, d2, "a trailing newline is a different model")
}

func TestConversionFingerprintDeterminism(t *testing.T) {
	digest := ModelDigest([]byte("model"))

	fp1, err := ConversionFingerprint(digest, "onnx", 10, 5, 21, 13)
	require.NoError(t, err)
	fp2, err := ConversionFingerprint(digest, "onnx", 10, 5, 21, 13)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "ConversionFingerprint must be deterministic")
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestConversionFingerprintChangesWithInput(t *testing.T) {
	digest := ModelDigest([]byte("model"))

	base := MustConversionFingerprint(digest, "onnx", 10, 5, 21, 13)

	assert.NotEqual(t, base, MustConversionFingerprint(digest, "tf", 10, 5, 21, 13),
		"target is part of the identity")
	assert.NotEqual(t, base, MustConversionFingerprint(digest, "onnx", 11, 5, 21, 13),
		"left context is part of the identity")
	assert.NotEqual(t, base, MustConversionFingerprint(digest, "onnx", 10, 6, 21, 13),
		"right context is part of the identity")
	assert.NotEqual(t, base, MustConversionFingerprint(digest, "onnx", 10, 5, 30, 13),
		"chunk size is part of the identity")
	assert.NotEqual(t, base, MustConversionFingerprint(digest, "onnx", 10, 5, 21, 17),
		"opset is part of the identity")

	other := ModelDigest([]byte("other model"))
	assert.NotEqual(t, base, MustConversionFingerprint(other, "onnx", 10, 5, 21, 13),
		"model digest is part of the identity")
}

func TestDescriptorKeyInterning(t *testing.T) {
	// Structurally identical sub-expressions must share one key even when
	// map insertion order differs.
	v1 := IRObject{
		"kind":   IRString("offset"),
		"input":  IRString("tdnn1"),
		"offset": IRInt(-3),
	}
	v2 := IRObject{
		"offset": IRInt(-3),
		"kind":   IRString("offset"),
		"input":  IRString("tdnn1"),
	}

	assert.Equal(t, MustDescriptorKey(v1), MustDescriptorKey(v2))

	v3 := IRObject{
		"kind":   IRString("offset"),
		"input":  IRString("tdnn1"),
		"offset": IRInt(3),
	}
	assert.NotEqual(t, MustDescriptorKey(v1), MustDescriptorKey(v3))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	// Same data hashed under different domains must not collide.
	data := []byte("payload")

	modelHash := hashWithDomain(DomainModel, data)
	convHash := hashWithDomain(DomainConversion, data)
	descHash := hashWithDomain(DomainDescriptor, data)

	assert.NotEqual(t, modelHash, convHash)
	assert.NotEqual(t, modelHash, descHash)
	assert.NotEqual(t, convHash, descHash)
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" must differ from "foob" + 0x00 + "ar".
	hash1 := hashWithDomain("foo", []byte("bar"))
	hash2 := hashWithDomain("foob", []byte("ar"))

	assert.NotEqual(t, hash1, hash2, "Null separator must prevent boundary confusion")
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "kaldi-onnx-tf/model/v1", DomainModel)
	assert.Equal(t, "kaldi-onnx-tf/conversion/v1", DomainConversion)
	assert.Equal(t, "kaldi-onnx-tf/descriptor/v1", DomainDescriptor)
}

func TestMustFunctionsPanicFreeOnValidInput(t *testing.T) {
	assert.NotPanics(t, func() {
		MustConversionFingerprint("digest", "onnx", 0, 0, 21, 13)
	})
	assert.NotPanics(t, func() {
		MustDescriptorKey(IRObject{"kind": IRString("input")})
	})
}

func TestHashHexEncoding(t *testing.T) {
	d := ModelDigest([]byte("model"))
	for _, c := range d {
		valid := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, valid, "digest should only contain hex characters, got: %c", c)
	}
}
