package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"

	"github.com/golang/glog"

	"github.com/cryptolite/rsa-timing/internal/oracle"
	"github.com/cryptolite/rsa-timing/pkg/timingattack"
)

// keyInfo is the sidecar written next to a dataset so a calibration run can
// check its recovery against the true key.
type keyInfo struct {
	Modulus         string `json:"modulus"`
	PublicExponent  string `json:"public_exponent"`
	PrivateExponent string `json:"private_exponent"`
}

func main() {
	var (
		out          = flag.String("out", "observations.csv", "Path for the dataset CSV")
		keyOut       = flag.String("key-out", "", "Path for the key info JSON (optional)")
		count        = flag.Int("count", 2000, "Number of observations to collect")
		primeBits    = flag.Int("prime-bits", 0, "Generate a fresh key with primes of this size (0 = fixed demo key)")
		message      = flag.String("message", "", "Sign the blocks of this text instead of random messages")
		base         = flag.Float64("base", 100, "Base signing duration")
		perReduction = flag.Float64("per-reduction", 10, "Duration added per extra Montgomery reduction")
		noise        = flag.Float64("noise", 0, "Standard deviation of gaussian measurement noise")
		seed         = flag.Int64("seed", 1, "Noise generator seed")
	)
	flag.Parse()
	defer glog.Flush()

	key := oracle.DemoKey()
	if *primeBits > 0 {
		var err error
		key, err = oracle.GenerateKey(*primeBits)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	glog.Infof("Oracle key: %d-bit modulus, e=%s", key.N.BitLen(), key.E)

	signer, err := oracle.NewSigner(key, *base, *perReduction, *noise, *seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var messages []*big.Int
	if *message != "" {
		messages, err = oracle.EncodeBlocks(*message, key.N)
	} else {
		messages, err = oracle.RandomMessages(key.N, *count)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	data := signer.Collect(messages)
	glog.Infof("Collected %d observations", len(data))

	if err := timingattack.WriteCSV(*out, data); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %d observations to %s\n", len(data), *out)
	fmt.Printf("Modulus: %s\n", key.N.Text(10))

	if *keyOut != "" {
		info := keyInfo{
			Modulus:         key.N.Text(10),
			PublicExponent:  key.E.Text(10),
			PrivateExponent: key.D.Text(10),
		}
		raw, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*keyOut, raw, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote key info to %s\n", *keyOut)
	}
}
