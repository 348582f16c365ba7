package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// ChecksumPath returns the pin file that guards configPath.
func ChecksumPath(configPath string) string {
	return configPath + ".sum"
}

// ComputeFileHash computes the BLAKE3 hash of a file.
func ComputeFileHash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeFileHash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}
	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}
	return nil
}

// VerifyPinnedChecksum checks configPath against its pin file, if one exists.
// A missing pin file is not an error: pinning is opt-in.
func VerifyPinnedChecksum(configPath string) error {
	sumPath := ChecksumPath(configPath)
	data, err := os.ReadFile(sumPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read checksum file %s: %w", sumPath, err)
	}
	expected := strings.Fields(strings.TrimSpace(string(data)))
	if len(expected) == 0 {
		return fmt.Errorf("checksum file %s is empty", sumPath)
	}
	return VerifyFileHash(configPath, expected[0])
}

// Pin writes the checksum pin file for configPath.
func Pin(configPath string) (string, error) {
	hash, err := ComputeFileHash(configPath)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%s  %s\n", hash, filepath.Base(configPath))
	if err := os.WriteFile(ChecksumPath(configPath), []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum file: %w", err)
	}
	return hash, nil
}
