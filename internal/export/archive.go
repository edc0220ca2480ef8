package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"loom/internal/tree"
)

// Archive is the envelope stored inside a .json.zst export. It carries
// the whole tree, not just the active path, so an archive can restore
// every branch.
type Archive struct {
	ConversationID string         `json:"conversation_id"`
	Name           string         `json:"name"`
	ExportedAt     time.Time      `json:"exported_at"`
	Document       *tree.Document `json:"document"`
}

var (
	archiveEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	archiveDecoder, _ = zstd.NewReader(nil)
)

// exportArchive serializes the full conversation and compresses it.
func exportArchive(id, title string, doc *tree.Document) (*Result, error) {
	payload, err := json.Marshal(Archive{
		ConversationID: id,
		Name:           title,
		ExportedAt:     time.Now().UTC(),
		Document:       doc,
	})
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}

	compressed := archiveEncoder.EncodeAll(payload, nil)

	return &Result{
		Data:     compressed,
		Filename: sanitizeFilename(title) + ".json.zst",
		MimeType: "application/zstd",
	}, nil
}

// ReadArchive decompresses and decodes an archive produced by exportArchive.
func ReadArchive(data []byte) (*Archive, error) {
	payload, err := archiveDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress archive: %w", err)
	}
	var archive Archive
	if err := json.Unmarshal(payload, &archive); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return &archive, nil
}
