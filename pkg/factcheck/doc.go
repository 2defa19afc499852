// Package factcheck scores how credible a scientific statement is, using a
// scoring head trained on top of a frozen text encoder.
//
// Quick start:
//
//	s, err := factcheck.New(factcheck.WithModelDir("model_output/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	confidence, _ := s.Score("Reiki relieves chronic pain.")
//	fmt.Printf("%.3f\n", confidence)
//
// A model directory is produced by Train or by `factcheck train`. The Scorer
// is safe for concurrent use. Create once, reuse across requests.
package factcheck
