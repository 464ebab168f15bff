// Package sim is the evacuation engine. A Controller owns one run: it turns
// people into agents, advances them tick by tick under a social-force style
// motion model, moves them between floors via stairs, tracks a decaying
// occupancy heatmap and emits an immutable Result when everyone is out or the
// run times out.
//
// Each tick computes the next agent array from the previous one only, so
// agent order never biases the forces. A Runner paces a Controller against a
// timeutil.Clock for real-time playback; RunToCompletion drives it headless.
package sim
