package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jaywantadh/querybyte/internal/registry"
	"github.com/jaywantadh/querybyte/internal/storage"
	"github.com/jaywantadh/querybyte/internal/transfer"
)

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeSample(path string, size int) error {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return os.WriteFile(path, data, 0644)
}

// roundTrip stands up a receiver for one profile, uploads the sample
// through a real loopback socket and checks the artifact hash.
func roundTrip(profile transfer.Profile, port int, workDir, samplePath, origHash string) error {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	store, err := storage.NewLocalStore(filepath.Join(workDir, "uploads"))
	if err != nil {
		return fmt.Errorf("storage init failed: %v", err)
	}
	reg, err := registry.Open(filepath.Join(workDir, "registry"))
	if err != nil {
		return fmt.Errorf("registry init failed: %v", err)
	}
	defer reg.Close()

	reassembler := transfer.NewReassembler(transfer.ReassemblerConfig{
		Store:    store,
		Registry: reg,
		Profile:  profile.Name,
		Logger:   log,
	})
	defer reassembler.Close()

	srv := transfer.NewServer(transfer.ServerConfig{
		Port:     port,
		Profile:  profile,
		Receiver: reassembler,
		Logger:   log,
	})
	go srv.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	sender := transfer.NewSender(transfer.SenderConfig{
		ServerURL:  fmt.Sprintf("http://127.0.0.1:%d", port),
		Profile:    profile,
		MaxRetries: 3,
		RetryDelay: 200 * time.Millisecond,
		Logger:     log,
	})

	up := false
	for i := 0; i < 20; i++ {
		if err := sender.Ping(); err == nil {
			up = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !up {
		return fmt.Errorf("server on port %d never came up", port)
	}

	res, err := sender.Upload(context.Background(), samplePath)
	if err != nil {
		return fmt.Errorf("upload failed: %v", err)
	}
	fmt.Printf("🧩 Profile %s: %d chunks, %d attempts, session %s\n", profile.Name, res.ChunksSent, res.Attempts, res.SessionID)

	artifact := store.Path(filepath.Base(samplePath))
	reHash, err := sha256File(artifact)
	if err != nil {
		return fmt.Errorf("failed hashing artifact: %v", err)
	}
	if reHash != origHash {
		return fmt.Errorf("artifact hash mismatch: %s != %s", reHash, origHash)
	}
	fmt.Printf("📦 Artifact: %s\n", artifact)
	return nil
}

func main() {
	workRoot := filepath.Join(os.TempDir(), "querybyte_manual")
	_ = os.RemoveAll(workRoot)
	if err := os.MkdirAll(workRoot, 0755); err != nil {
		fmt.Printf("❌ Failed to create work dir: %v\n", err)
		return
	}
	defer os.RemoveAll(workRoot)

	samplePath := filepath.Join(workRoot, "sample.bin")
	if err := writeSample(samplePath, 100*1024); err != nil {
		fmt.Printf("❌ Failed to write sample file: %v\n", err)
		return
	}

	origHash, err := sha256File(samplePath)
	if err != nil {
		fmt.Printf("❌ Failed hashing original: %v\n", err)
		return
	}
	fmt.Printf("📄 Sample file: %s\n", samplePath)
	fmt.Printf("🔑 Original SHA256: %s\n", origHash)

	runs := []struct {
		profile transfer.Profile
		port    int
	}{
		{transfer.DefaultProfile(), 9090},
		{transfer.LowBandwidthProfile(), 9091},
	}

	ok := true
	for _, run := range runs {
		dir := filepath.Join(workRoot, run.profile.Name)
		if err := roundTrip(run.profile, run.port, dir, samplePath, origHash); err != nil {
			fmt.Printf("❌ Profile %s: %v\n", run.profile.Name, err)
			ok = false
		}
	}

	if ok {
		fmt.Println("✅ SUCCESS: All profiles round-tripped the sample file")
	} else {
		fmt.Println("❌ FAILURE: See errors above")
		os.Exit(1)
	}
}
