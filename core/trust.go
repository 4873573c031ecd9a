package core

// Trust ranks for merge conflict resolution. Higher wins. Unknown
// sources fail closed at rank 0 so they never overwrite known data.
var trustRanks = map[DataSource]int{
	SourceGoogleProtobuf: 40,
	SourceKiwiAPI:        30,
	SourceDirectCrawl:    20,
	SourceOfficialAPI:    20,
	SourceGDS:            10,
}

// TrustRank returns the merge priority of a source. Unknown sources
// rank below every known source.
func TrustRank(s DataSource) int {
	return trustRanks[s]
}

// MoreTrusted reports whether a is strictly more trusted than b.
func MoreTrusted(a, b DataSource) bool {
	return TrustRank(a) > TrustRank(b)
}
