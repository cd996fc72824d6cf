package rf433

// Version of the rf433 tools and on-disk formats.
const Version = "0.4.0"
