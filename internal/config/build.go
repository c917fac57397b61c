package config

// Stamped by the release pipeline for every binary under cmd/:
//
//	go build -ldflags "-X barecourier/internal/config.version=$TAG \
//	    -X barecourier/internal/config.commit=$SHA \
//	    -X barecourier/internal/config.buildTime=$BUILT_AT" ./cmd/...
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// UserAgent identifies outbound calls to the push and email senders, e.g.
// "barecourier/1.4.0 (3f2a9c1)". Unstamped builds send "barecourier/dev".
func (b BuildInfo) UserAgent() string {
	ua := "barecourier/" + b.Version
	if b.Commit != "" && b.Commit != "none" {
		ua += " (" + b.Commit + ")"
	}
	return ua
}
