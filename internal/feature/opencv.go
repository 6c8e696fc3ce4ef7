package feature

import (
	"context"
	"image"

	"gocv.io/x/gocv"
)

// opencvBackend matches ORB keypoint descriptors between the captured crop
// and the golden sample with a brute-force ratio-test matcher, returning
// the proportion of descriptors that pass the ratio test as the similarity
// score. This is the corpus's own stated algorithm for crop comparison —
// "bag of local descriptors" plus a ratio-test proportion — backed by real
// OpenCV Go bindings (gocv.io/x/gocv) rather than a hand-rolled approximation.
type opencvBackend struct {
	orb *gocv.ORB
}

func (b *opencvBackend) Name() string { return "opencv" }

func (b *opencvBackend) warmUp() error {
	orb := gocv.NewORB()
	b.orb = &orb
	return nil
}

func (b *opencvBackend) Similarity(ctx context.Context, captured, golden *image.NRGBA) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	matA, err := gocv.ImageToMatRGB(captured)
	if err != nil {
		return 0, err
	}
	defer matA.Close()
	matB, err := gocv.ImageToMatRGB(golden)
	if err != nil {
		return 0, err
	}
	defer matB.Close()

	grayA := gocv.NewMat()
	defer grayA.Close()
	grayB := gocv.NewMat()
	defer grayB.Close()
	gocv.CvtColor(matA, &grayA, gocv.ColorBGRToGray)
	gocv.CvtColor(matB, &grayB, gocv.ColorBGRToGray)

	kpA, descA := b.orb.DetectAndCompute(grayA, gocv.NewMat())
	defer descA.Close()
	kpB, descB := b.orb.DetectAndCompute(grayB, gocv.NewMat())
	defer descB.Close()

	if len(kpA) == 0 || len(kpB) == 0 || descA.Empty() || descB.Empty() {
		return 0, nil
	}

	matcher := gocv.NewBFMatcher()
	defer matcher.Close()
	knnMatches := matcher.KnnMatch(descA, descB, 2)

	good := 0
	const ratioThreshold = 0.75
	for _, pair := range knnMatches {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < ratioThreshold*pair[1].Distance {
			good++
		}
	}

	denom := len(kpA)
	if len(kpB) < denom {
		denom = len(kpB)
	}
	if denom == 0 {
		return 0, nil
	}
	ratio := float64(good) / float64(denom)
	if ratio > 1 {
		ratio = 1
	}
	return ratio, nil
}
