package domain

// Version is the controller release written into topology descriptors and reported by /v2/version.
const Version = "0.1.0"
