package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	gos3 "inventoried/pkg/s3"
)

// Manifest describes one uploaded inventory snapshot.
type Manifest struct {
	Version   string    `yaml:"version"`
	CreatedAt time.Time `yaml:"created_at"`
	HostCount int       `yaml:"host_count"`
	SHA256    string    `yaml:"sha256"`
	Encrypted bool      `yaml:"encrypted"`
	Key       string    `yaml:"key"`
}

// ExportOptions configure a snapshot export.
type ExportOptions struct {
	Bucket string
	// Prefix is prepended to the object key, e.g. "snapshots/".
	Prefix string
	// Recipient is an optional age X25519 recipient; when set the
	// compressed snapshot is encrypted to it.
	Recipient string
	ChunkSize int
	Now       func() time.Time
}

// Snapshot is an assembled, compressed (and possibly encrypted) dump of
// every host the source yields, as zstd JSON lines.
type Snapshot struct {
	Data      []byte
	HostCount int
	Encrypted bool
}

// BuildSnapshot streams all hosts from the source into a zstd-compressed
// JSON-lines payload, optionally encrypted to an age recipient.
func BuildSnapshot(ctx context.Context, src Source, recipient string, chunkSize int) (*Snapshot, error) {
	if src == nil {
		return nil, errors.New("source is required")
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	var buf bytes.Buffer
	var sink io.Writer = &buf
	var encCloser io.Closer

	if recipient != "" {
		rec, err := age.ParseX25519Recipient(recipient)
		if err != nil {
			return nil, fmt.Errorf("parse age recipient: %w", err)
		}
		encW, err := age.Encrypt(&buf, rec)
		if err != nil {
			return nil, fmt.Errorf("init encryption: %w", err)
		}
		sink = encW
		encCloser = encW
	}

	zw, err := zstd.NewWriter(sink)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(zw)
	count := 0
	for offset := 0; ; offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hosts, err := src.HostChunk(ctx, offset, chunkSize)
		if err != nil {
			return nil, err
		}
		if len(hosts) == 0 {
			break
		}
		for _, h := range hosts {
			if err := enc.Encode(h); err != nil {
				return nil, err
			}
			count++
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	if encCloser != nil {
		if err := encCloser.Close(); err != nil {
			return nil, err
		}
	}

	return &Snapshot{Data: buf.Bytes(), HostCount: count, Encrypted: recipient != ""}, nil
}

// Export builds a snapshot and uploads it plus a yaml manifest to S3.
func Export(ctx context.Context, src Source, client *gos3.Client, opts ExportOptions) (*Manifest, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	snap, err := BuildSnapshot(ctx, src, opts.Recipient, opts.ChunkSize)
	if err != nil {
		return nil, err
	}

	stamp := now().UTC()
	key := fmt.Sprintf("%shosts-%s.jsonl.zst", opts.Prefix, stamp.Format("20060102T150405Z"))
	if snap.Encrypted {
		key += ".age"
	}

	digest := sha256.Sum256(snap.Data)
	shaHex := hex.EncodeToString(digest[:])

	if err := client.PutObject(ctx, opts.Bucket, key, bytes.NewReader(snap.Data), int64(len(snap.Data)), shaHex); err != nil {
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	manifest := &Manifest{
		Version:   "1",
		CreatedAt: stamp.Truncate(time.Second),
		HostCount: snap.HostCount,
		SHA256:    shaHex,
		Encrypted: snap.Encrypted,
		Key:       key,
	}
	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	manifestDigest := sha256.Sum256(manifestBytes)
	manifestKey := key + ".manifest.yaml"
	err = client.PutObject(ctx, opts.Bucket, manifestKey,
		bytes.NewReader(manifestBytes), int64(len(manifestBytes)),
		hex.EncodeToString(manifestDigest[:]))
	if err != nil {
		return nil, fmt.Errorf("upload manifest: %w", err)
	}

	return manifest, nil
}
