package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffpipe/internal/catalog"
	"github.com/smazurov/ffpipe/internal/media"
)

// CreateCapsCmd creates the caps command.
func CreateCapsCmd() *cobra.Command {
	var (
		deviceID   string
		width      int
		height     int
		fps        int
		format     string
		interlaced bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Print the capability catalog",
		Long: `Lists every catalog device and its capabilities. With --width, --height or --fps ` +
			`it prints the capability that best matches the request instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices := catalog.Default()
			out := cmd.OutOrStdout()

			if !cmd.Flags().Changed("width") && !cmd.Flags().Changed("height") && !cmd.Flags().Changed("fps") {
				if asJSON {
					return writeJSON(out, devices.Devices())
				}
				return printCatalog(cmd, devices)
			}

			requested := catalog.Capability{Width: width, Height: height, MaxFPS: fps, Interlaced: interlaced}
			if format != "" {
				pf, err := media.ParsePixelFormat(format)
				if err != nil {
					return err
				}
				requested.PixelFormat = pf
			}
			match, err := devices.BestMatch(deviceID, requested)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, match)
			}
			fmt.Fprintf(out, "best match for %s: #%d %s (score %d)\n", requested, match.Index, match.Capability, match.Score)
			return nil
		},
	}

	cmd.Flags().StringVarP(&deviceID, "device", "d", catalog.DefaultDeviceID, "Device id for best-match queries")
	cmd.Flags().IntVar(&width, "width", 0, "Requested width")
	cmd.Flags().IntVar(&height, "height", 0, "Requested height")
	cmd.Flags().IntVar(&fps, "fps", 0, "Requested frame rate")
	cmd.Flags().StringVar(&format, "format", "", "Requested pixel format (i420, rgb24, yuyv422, ...)")
	cmd.Flags().BoolVar(&interlaced, "interlaced", false, "Request an interlaced capability")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printCatalog(cmd *cobra.Command, devices *catalog.Catalog) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tID\tINDEX\tCAPABILITY")
	for _, d := range devices.Devices() {
		for i, c := range d.Capabilities {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.Name, d.ID, i, c)
		}
	}
	for _, dir := range []media.Direction{media.Record, media.Playout} {
		for _, a := range devices.AudioDevices(dir) {
			fmt.Fprintf(w, "%s\t%s\t-\t%s %s\n", a.Name, a.GUID, dir, a.Config)
		}
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
