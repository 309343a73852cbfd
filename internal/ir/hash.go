package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainModel      = "kaldi-onnx-tf/model/v1"
	DomainConversion = "kaldi-onnx-tf/conversion/v1"
	DomainDescriptor = "kaldi-onnx-tf/descriptor/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelDigest computes the content digest of a raw model file.
// The digest covers the exact bytes read from disk, before parsing, so any
// textual edit to the model invalidates it.
func ModelDigest(data []byte) string {
	return hashWithDomain(DomainModel, data)
}

// ConversionFingerprint computes the content-addressed identity of one
// conversion: which model, to which target, under which semantically
// relevant parameters. Two runs with equal fingerprints produce equal
// artifacts, which is what the cache ledger relies on.
//
// Cosmetic inputs (output path, verbosity) are intentionally excluded.
func ConversionFingerprint(modelDigest, target string, leftContext, rightContext, chunkSize, opset int) (string, error) {
	obj := IRObject{
		"model":         IRString(modelDigest),
		"target":        IRString(target),
		"left_context":  IRInt(int64(leftContext)),
		"right_context": IRInt(int64(rightContext)),
		"chunk_size":    IRInt(int64(chunkSize)),
		"opset":         IRInt(int64(opset)),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConversionFingerprint: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainConversion, canonical), nil
}

// DescriptorKey computes the interning key for a resolved descriptor
// sub-expression from its canonical encoding. Structurally identical
// sub-expressions produce the same key and therefore share one graph node.
func DescriptorKey(v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("DescriptorKey: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainDescriptor, canonical), nil
}

// MustConversionFingerprint is like ConversionFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConversionFingerprint(modelDigest, target string, leftContext, rightContext, chunkSize, opset int) string {
	fp, err := ConversionFingerprint(modelDigest, target, leftContext, rightContext, chunkSize, opset)
	if err != nil {
		panic(err)
	}
	return fp
}

// MustDescriptorKey is like DescriptorKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDescriptorKey(v IRValue) string {
	key, err := DescriptorKey(v)
	if err != nil {
		panic(err)
	}
	return key
}
