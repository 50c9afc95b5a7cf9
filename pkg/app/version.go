package app

// Version is the ally release version, overridable at build time with
// -ldflags "-X github.com/small-frappuccino/ally/pkg/app.Version=...".
var Version = "0.1.0"
