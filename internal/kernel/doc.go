// Package kernel provides the numeric building blocks shared by every PFCH
// driver: periodic grid operators, the FFT Poisson solver, Gaussian
// generators, field reductions and the seeded RNG.
//
// All functions are pure. Operators return fresh slices and never retain
// references to their inputs.
package kernel
