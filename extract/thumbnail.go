package extract

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"
)

// Thumbnail extracts a single still frame of src at the given offset
// and writes it to dst. A non-zero exit or missing output file is an
// error; callers treat it as non-fatal and continue without a
// thumbnail.
func (t *Tools) Thumbnail(ctx context.Context, src, dst string, seek time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffmpegPath,
		"-y",
		"-v", "error",
		"-ss", formatSeek(seek),
		"-i", src,
		"-vframes", "1",
		"-q:v", "2",
		dst)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("thumbnail %s: timed out after %s", src, t.timeout)
		}
		log.Printf("thumbnail %s: %s", src, string(out))
		return fmt.Errorf("thumbnail %s: %w", src, err)
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("thumbnail %s: no output written", src)
	}
	return nil
}

// formatSeek renders an offset as the HH:MM:SS timestamp the encoder
// expects.
func formatSeek(seek time.Duration) string {
	seconds := int(seek.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d",
		seconds/3600, (seconds/60)%60, seconds%60)
}
