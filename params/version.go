package params

// Version is the ledgerd build version string, reported by the CLI's
// --version flag the way the teacher's cmd/kcn reports params.Version.
const Version = "0.1.0"
