package logging

// ProgressSampler suppresses repetitive progress logs by emitting only when
// the completion percentage enters a new bucket.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler with the given bucket width in
// percent (default 10).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: 0}
}

// ShouldLog reports whether done/total crosses into a bucket not yet reported.
// The zero bucket is never reported.
func (s *ProgressSampler) ShouldLog(done, total int) bool {
	if s == nil {
		return true
	}
	if total <= 0 || done <= 0 {
		return false
	}
	percent := float64(done) / float64(total) * 100
	if percent > 100 {
		percent = 100
	}
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Percent returns the last reported bucket as a percentage.
func (s *ProgressSampler) Percent() float64 {
	if s == nil {
		return 0
	}
	return float64(s.lastBucket) * s.bucketSize
}
