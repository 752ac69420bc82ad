package dataset

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteText prints the report as aligned columns followed by warnings and label errors.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPLIT\tIMAGES\tLABELED\tBACKGROUND\tUNLABELED\tOBJECTS\tDIR")
	for _, s := range r.Splits {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Name, s.Images, s.Labeled, s.Background, len(s.Unlabeled), s.Objects(), s.Dir)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "CLASS\tNAME")
	for _, s := range r.Splits {
		fmt.Fprintf(tw, "\t%s", s.Name)
	}
	fmt.Fprintln(tw)
	for i, name := range r.Descriptor.Names {
		fmt.Fprintf(tw, "%d\t%s", i, name)
		for _, s := range r.Splits {
			fmt.Fprintf(tw, "\t%d", s.Instances[i])
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, s := range r.Splits {
		for _, img := range s.Unlabeled {
			fmt.Fprintf(w, "%s: no label file, counted as zero objects: %s\n", s.Name, img)
		}
	}
	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "error: %v\n", e)
	}
	_, err := fmt.Fprintf(w, "%d label errors, %d warnings\n", len(r.Errors), len(r.Warnings))
	return err
}
