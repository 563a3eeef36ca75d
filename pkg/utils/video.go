package utils

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	videoFilePattern = regexp.MustCompile(`(?i)\.(mp4|mkv|avi|mov|wmv|flv|webm|m4v|mpeg|mpg|3gp|ogv|vob|ts|mxf)$`)
	audioFilePattern = regexp.MustCompile(`(?i)\.(mp3|wav|flac|aac|m4a|ogg)$`)
)

func IsVideoFile(name string) bool {
	return videoFilePattern.MatchString(name)
}

func IsAudioFile(name string) bool {
	return audioFilePattern.MatchString(name)
}

// BaseName strips directory and extension: "/a/b/clip.mp4" -> "clip".
func BaseName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func ValidateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return err
	}
	return nil
}
