package main

import (
	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/configuration"
	"github.com/scusemua/offer-ranking/common/types"
)

var (
	ErrNoOffersFile = errors.New("an offers file must be specified")
	ErrInvalidJob   = errors.New("job must have the form role/environment/name")
)

// Options are the command-line options of the offer ranker.
type Options struct {
	configuration.HttpOfferSetOptions `yaml:",inline" json:"http_offer_set_options"`

	OffersFile string  `name:"offers-file" json:"offers-file" yaml:"offers-file" description:"Path of a JSON file holding the offers to rank."`
	Job        string  `name:"job"         json:"job"         yaml:"job"         description:"Key of the job whose task is being placed, as role/environment/name."`
	Task       string  `name:"task"        json:"task"        yaml:"task"        description:"Name of the task being placed."`
	Cpus       float64 `name:"cpus"        json:"cpus"        yaml:"cpus"        description:"CPUs requested by the task."`
	RamMb      float64 `name:"ram-mb"      json:"ram-mb"      yaml:"ram-mb"      description:"Memory, in MB, requested by the task."`
	DiskMb     float64 `name:"disk-mb"     json:"disk-mb"     yaml:"disk-mb"     description:"Disk, in MB, requested by the task."`
	Rounds     int     `name:"rounds"      json:"rounds"      yaml:"rounds"      description:"Number of times the offers are ranked."`
	IntervalMs int     `name:"interval-ms" json:"interval-ms" yaml:"interval-ms" description:"Pause, in milliseconds, between two rounds."`
	DeadlineMs int     `name:"deadline-ms" json:"deadline-ms" yaml:"deadline-ms" description:"Maximum time, in milliseconds, a round waits for the ranking before using the fallback order."`
}

// DefaultOptions returns Options populated with the default values.
func DefaultOptions() Options {
	return Options{
		HttpOfferSetOptions: *configuration.DefaultHttpOfferSetOptions(),
		Job:                 "www-data/prod/hello",
		Task:                "0",
		Cpus:                1,
		RamMb:               128,
		DiskMb:              128,
		Rounds:              1,
		DeadlineMs:          1000,
	}
}

// Validate checks the options.
func (opts *Options) Validate() error {
	if err := opts.HttpOfferSetOptions.Validate(); err != nil {
		return err
	}

	if opts.OffersFile == "" {
		return ErrNoOffersFile
	}

	if _, err := types.ParseJobKey(opts.Job); err != nil {
		return errors.Wrap(ErrInvalidJob, err.Error())
	}

	return nil
}

// ResourceRequest returns the resource request of the task being placed.
func (opts *Options) ResourceRequest() (*types.ResourceRequest, types.TaskGroupKey, error) {
	job, err := types.ParseJobKey(opts.Job)
	if err != nil {
		return nil, types.TaskGroupKey{}, errors.Wrap(ErrInvalidJob, err.Error())
	}

	return types.NewResourceRequest(job, opts.Cpus, opts.RamMb, opts.DiskMb), types.TaskGroupKey{Job: job, TaskName: opts.Task}, nil
}
