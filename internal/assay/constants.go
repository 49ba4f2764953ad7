package assay

// Physical constants of the BglB plate assay.
const (
	EpsilonEnzyme    = 113330.0 // M^-1 cm^-1, enzyme at 280 nm
	EpsilonByproduct = 10660.0  // M^-1 cm^-1, p-nitrophenolate at 420 nm
	MolarMassEnzyme  = 51395.85 // g/mol
	AssayPathLength  = 0.572    // cm
	A280PathLength   = 1.0      // cm
	AssayVolume      = 0.0001   // L
	EnzymeVolume     = 0.000025 // L
	HighKMThreshold  = 75.0     // mM; above this the saturating regime is not sampled
)

// Plate geometry shared by the kinetic and vertical thermostability exports.
const (
	dataFirstRow = 4
	dataLastRow  = 11
	dataFirstCol = 2
	dataLastCol  = 4

	horizHeaderRow = 1
	horizFirstCol  = 3
	horizLastCol   = 14
)

// SubstrateLadder is the substrate concentration (mM) of each well, in the
// row-major order the slope block is read: one dilution step per plate row,
// three replicates per step.
var SubstrateLadder = [24]float64{
	75.000, 75.000, 75.000,
	25.000, 25.000, 25.000,
	8.333, 8.333, 8.333,
	2.778, 2.778, 2.778,
	0.926, 0.926, 0.926,
	0.309, 0.309, 0.309,
	0.103, 0.103, 0.103,
	0.000, 0.000, 0.000,
}
