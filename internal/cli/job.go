package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage provisioning jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobTasksCmd(clientFn, outputFn),
	)

	return cmd
}

var jobHeaders = []string{"ID", "BATCH_ID", "STATUS", "TOTAL", "SUCCEEDED", "FAILED", "CREATED"}

func jobRow(j JobResponse) []string {
	return []string{
		j.ID,
		j.BatchID,
		j.Status,
		strconv.Itoa(j.Total),
		strconv.Itoa(j.Succeeded),
		strconv.Itoa(j.Failed),
		j.CreatedAt,
	}
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		batchFile    string
		batchID      string
		submitter    string
		cloud        string
		region       string
		instanceType string
		image        string
		name         string
		count        int
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a batch of instances to provision",
		Long: `Submit a batch of instances to provision.

Instances come either from a JSON file (--file, an array of instance
params) or from the --cloud/--region/--type/--image flags repeated
--count times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var instances []InstanceParams
			if batchFile != "" {
				data, err := os.ReadFile(batchFile)
				if err != nil {
					return fmt.Errorf("failed to read batch file: %w", err)
				}
				if err := json.Unmarshal(data, &instances); err != nil {
					return fmt.Errorf("batch file is not a valid JSON array of instances: %w", err)
				}
			} else {
				if cloud == "" || region == "" || instanceType == "" || image == "" {
					return fmt.Errorf("either --file or all of --cloud, --region, --type, --image are required")
				}
				if count < 1 {
					count = 1
				}
				for i := 0; i < count; i++ {
					instances = append(instances, InstanceParams{
						Cloud:        cloud,
						Region:       region,
						InstanceType: instanceType,
						Image:        image,
						Name:         name,
					})
				}
			}

			result, err := client.SubmitJob(SubmitJobRequest{
				BatchID:   batchID,
				Submitter: submitter,
				Instances: instances,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			switch {
			case result.DryRun:
				out.Success(fmt.Sprintf("Dry run: %d tasks validated", result.Job.Total))
			case result.Existing:
				out.Success(fmt.Sprintf("Batch already submitted, job: %s", result.Job.ID))
			default:
				out.Success(fmt.Sprintf("Job created: %s", result.Job.ID))
			}
			out.Print(jobHeaders, [][]string{jobRow(result.Job)}, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&batchFile, "file", "", "Path to JSON file with instance params array")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "Client batch id for idempotent resubmit")
	cmd.Flags().StringVar(&submitter, "submitter", "", "Tenant submitting the batch")
	cmd.Flags().StringVar(&cloud, "cloud", "", "Cloud provider (e.g. aws)")
	cmd.Flags().StringVar(&region, "region", "", "Region")
	cmd.Flags().StringVar(&instanceType, "type", "", "Instance type")
	cmd.Flags().StringVar(&image, "image", "", "Image id")
	cmd.Flags().StringVar(&name, "name", "", "Instance name")
	cmd.Flags().IntVar(&count, "count", 1, "Number of identical instances")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate only, do not provision")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(jobHeaders, [][]string{jobRow(*job)}, job)
			return nil
		},
	}
}

func newJobTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks JOB_ID",
		Short: "List tasks of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(args[0])
			if err != nil {
				return err
			}

			headers := []string{"INDEX", "STATUS", "ATTEMPTS", "INSTANCE", "ERROR"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{
					strconv.Itoa(t.Index),
					t.Status,
					strconv.Itoa(t.Attempts),
					t.CloudInstanceID,
					t.LastError,
				}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}
