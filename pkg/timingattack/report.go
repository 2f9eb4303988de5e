package timingattack

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
)

// RenderRounds writes the per-round recovery statistics as a table. Decided
// 1 bits are highlighted since they are the rounds where the side channel
// actually separated the buckets.
func RenderRounds(w io.Writer, rounds []RoundStats) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	oneFmt := color.New(color.FgRed, color.Bold).SprintfFunc()
	zeroFmt := color.New(color.FgGreen).SprintfFunc()

	tbl := table.New("Bit", "Sub", "Clean", "MeanSub", "MeanClean", "StdSub", "StdClean", "Gap", "Decision")
	tbl.WithHeaderFormatter(headerFmt).WithWriter(w)

	for _, rs := range rounds {
		decision := zeroFmt("0")
		if rs.Decided == 1 {
			decision = oneFmt("1")
		}
		tbl.AddRow(
			rs.FocusBit,
			rs.Subtracted,
			rs.Clean,
			fmt.Sprintf("%.3f", rs.MeanSub),
			fmt.Sprintf("%.3f", rs.MeanClean),
			fmt.Sprintf("%.3f", rs.StdSub),
			fmt.Sprintf("%.3f", rs.StdClean),
			fmt.Sprintf("%.3f", rs.Gap),
			decision,
		)
	}
	tbl.Print()
}

// DumpBuckets writes one round's partition to dir as bit_<i>.csv, listing the
// dataset columns plus a bucket label: 1 when the subtraction was predicted,
// 2 when it was not.
func DumpBuckets(dir string, focusBit int, subtracted, clean Bucket) error {
	file, err := os.Create(filepath.Join(dir, fmt.Sprintf("bit_%d.csv", focusBit)))
	if err != nil {
		return errors.Wrap(err, "failed to create bucket dump")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"message", "signature", "duration", "bucket"}); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for label, bucket := range []Bucket{subtracted, clean} {
		for _, rec := range bucket {
			row := []string{
				rec.Message.Text(10),
				rec.Signature.Text(10),
				strconv.FormatFloat(rec.Duration, 'f', -1, 64),
				strconv.Itoa(label + 1),
			}
			if err := writer.Write(row); err != nil {
				return errors.Wrap(err, "failed to write record")
			}
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush bucket dump")
}
