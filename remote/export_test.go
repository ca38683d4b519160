package remote

// Drain exposes the idle-drain loop to external tests.
var Drain = drain
