package transcode

import (
	"fmt"
	"strings"
)

const DefaultContainer = "webm"

// Container is an output format and the codecs it is encoded with.
type Container struct {
	Name       string
	MIMEType   string
	VideoCodec string
	AudioCodec string
}

func (c Container) Ext() string { return "." + c.Name }

var containers = map[string]Container{
	"webm": {Name: "webm", MIMEType: "video/webm", VideoCodec: "libvpx", AudioCodec: "libvorbis"},
	"mp4":  {Name: "mp4", MIMEType: "video/mp4", VideoCodec: "libx264", AudioCodec: "aac"},
}

// LookupContainer returns the container named name; empty means webm.
func LookupContainer(name string) (Container, error) {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if name == "" {
		name = DefaultContainer
	}
	c, ok := containers[name]
	if !ok {
		return Container{}, fmt.Errorf("%w: %q", ErrUnsupportedContainer, name)
	}
	return c, nil
}
