package version

// Version is set at build time with -ldflags "-X .../version.Version=x.y.z".
var Version = "1.0.0"
