// Package platform knows how to address content sources on the supported
// streaming platforms and how to ask the live-status service which channels
// are currently broadcasting.
package platform

import (
	"fmt"
	"strings"
)

const (
	Twitch  = "twitch"
	YouTube = "youtube"
)

// Supported reports whether name is a platform the pipeline can process.
func Supported(name string) bool {
	switch strings.ToLower(name) {
	case Twitch, YouTube:
		return true
	}
	return false
}

// ChannelVideosURL returns the archive/videos page for a channel, suitable
// for flat-playlist listing.
func ChannelVideosURL(platformName, channelRef string) (string, error) {
	switch strings.ToLower(platformName) {
	case Twitch:
		return fmt.Sprintf("https://www.twitch.tv/%s/videos?filter=archives", channelRef), nil
	case YouTube:
		return fmt.Sprintf("https://www.youtube.com/channel/%s/videos", channelRef), nil
	}
	return "", fmt.Errorf("unsupported platform %q", platformName)
}

// VideoURL returns the watch page for a single video reference.
func VideoURL(platformName, videoRef string) (string, error) {
	switch strings.ToLower(platformName) {
	case Twitch:
		return "https://www.twitch.tv/videos/" + videoRef, nil
	case YouTube:
		return "https://www.youtube.com/watch?v=" + videoRef, nil
	}
	return "", fmt.Errorf("unsupported platform %q", platformName)
}
