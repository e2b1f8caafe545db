// Package imageref turns stored image locators into displayable URLs.
package imageref

import (
	"fmt"
	"net/url"
)

// CDNBase is the attachment host for uploaded images.
const CDNBase = "https://cdn.discordapp.com/attachments"

// DefaultFilename is used when a locator carries no filename.
const DefaultFilename = "image.png"

// Resolve returns the URL of the image attached to a message, or "" when
// channelID or messageID is empty. The result depends only on its inputs.
func Resolve(channelID, messageID, filename string) string {
	if channelID == "" || messageID == "" {
		return ""
	}
	if filename == "" {
		filename = DefaultFilename
	}
	return fmt.Sprintf("%s/%s/%s/%s", CDNBase,
		url.PathEscape(channelID), url.PathEscape(messageID), url.PathEscape(filename))
}
