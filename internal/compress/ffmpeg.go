package compress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	execute "github.com/alexellis/go-execute/v2"
)

// Transcoder turns a stored file into a compressed derivative.
type Transcoder interface {
	// Compress reads inputPath and produces a derived output file,
	// returning its path.
	Compress(ctx context.Context, inputPath string) (string, error)
}

// FFmpegTranscoder shells out to ffmpeg to re-encode video files with H.265,
// reduced bitrate and a 1920px bounding scale.
type FFmpegTranscoder struct {
	binary string
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary.
func NewFFmpegTranscoder(binary string) *FFmpegTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{binary: binary}
}

func (t *FFmpegTranscoder) Compress(ctx context.Context, inputPath string) (string, error) {
	info, err := os.Stat(inputPath)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("input file does not exist: %s", inputPath)
	}

	outputPath := compressedOutputPath(inputPath)

	task := execute.ExecTask{
		Command: t.binary,
		Args: []string{
			"-i", inputPath,
			"-vcodec", "libx265",
			"-crf", "28",
			"-preset", "slow",
			"-b:v", "1000k",
			"-r", "24",
			"-vf", "scale='if(gt(iw,ih),1920,-1)':'if(gt(iw,ih),-1,1920)'",
			"-acodec", "aac",
			"-b:a", "64k",
			outputPath,
		},
	}

	res, err := task.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("ffmpeg execution failed: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("ffmpeg exited with code %d: %s", res.ExitCode, res.Stderr)
	}

	return outputPath, nil
}

// compressedOutputPath derives the output path by appending "_compress"
// before the extension: /a/video.mp4 -> /a/video_compress.mp4.
func compressedOutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	name := filepath.Base(inputPath)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, base+"_compress"+ext)
}
