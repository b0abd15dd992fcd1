package gtmchat

// Version is set at build time with -ldflags "-X github.com/cloudhubibi/gtmchat.Version=...".
var Version = "dev"
