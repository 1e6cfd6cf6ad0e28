package ir

// Version is the vesting release, reported by the CLI.
const Version = "0.1.0"
