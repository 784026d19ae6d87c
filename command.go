package broker

import (
	"fmt"
	"slices"
	"strconv"
)

// Command identifies the operation carried by an envelope.
type Command uint8

// Device and provisioning commands.
const (
	CommandUpload              Command = 1
	CommandDownload            Command = 2
	CommandUpdateGoal          Command = 3
	CommandGetDevices          Command = 4
	CommandNotifyBrokerCreated Command = 5
	CommandGetEvents           Command = 6
)

// Device agent commands.
const (
	CommandGetGoal     Command = 10
	CommandReportState Command = 11
	CommandReportEvent Command = 12
)

// Pod registry commands.
const (
	CommandPodRegistryDescriptionUpsert   Command = 100
	CommandPodRegistryAdd                 Command = 101
	CommandPodRegistryTagSet              Command = 102
	CommandPodRegistryTagRemove           Command = 103
	CommandPodRegistryDescriptions        Command = 104
	CommandPodRegistryDescriptionsByIDs   Command = 105
	CommandPodRegistryDescriptionsByNames Command = 106
	CommandPodRegistryPods                Command = 107
	CommandPodRegistryPodsByIDs           Command = 108
	CommandPodRegistryPodIDsByReference   Command = 109
)

// DefaultSchema is the database schema holding the broker procedures.
const DefaultSchema = "toit_artemis"

// procedure describes how a command maps to a remote procedure.
// Procedures that don't return data only report success or failure.
type procedure struct {
	name        string
	returnsData bool
}

var procedures = map[Command]procedure{
	CommandUpdateGoal:          {name: "set_goal"},
	CommandGetDevices:          {name: "get_devices", returnsData: true},
	CommandNotifyBrokerCreated: {name: "new_provisioned"},
	CommandGetEvents:           {name: "get_events", returnsData: true},

	CommandGetGoal:     {name: "get_goal", returnsData: true},
	CommandReportState: {name: "update_state"},
	CommandReportEvent: {name: "report_event"},

	CommandPodRegistryDescriptionUpsert:   {name: "upsert_pod_description", returnsData: true},
	CommandPodRegistryAdd:                 {name: "insert_pod"},
	CommandPodRegistryTagSet:              {name: "set_pod_tag"},
	CommandPodRegistryTagRemove:           {name: "delete_pod_tag"},
	CommandPodRegistryDescriptions:        {name: "get_pod_descriptions", returnsData: true},
	CommandPodRegistryDescriptionsByIDs:   {name: "get_pod_descriptions_by_ids", returnsData: true},
	CommandPodRegistryDescriptionsByNames: {name: "get_pod_descriptions_by_names", returnsData: true},
	CommandPodRegistryPods:                {name: "get_pods", returnsData: true},
	CommandPodRegistryPodsByIDs:           {name: "get_pods_by_ids", returnsData: true},
	CommandPodRegistryPodIDsByReference:   {name: "get_pods_by_reference", returnsData: true},
}

var commandNames = map[Command]string{
	CommandUpload:              "upload",
	CommandDownload:            "download",
	CommandUpdateGoal:          "update-goal",
	CommandGetDevices:          "get-devices",
	CommandNotifyBrokerCreated: "notify-broker-created",
	CommandGetEvents:           "get-events",

	CommandGetGoal:     "get-goal",
	CommandReportState: "report-state",
	CommandReportEvent: "report-event",

	CommandPodRegistryDescriptionUpsert:   "pod-registry-description-upsert",
	CommandPodRegistryAdd:                 "pod-registry-add",
	CommandPodRegistryTagSet:              "pod-registry-tag-set",
	CommandPodRegistryTagRemove:           "pod-registry-tag-remove",
	CommandPodRegistryDescriptions:        "pod-registry-descriptions",
	CommandPodRegistryDescriptionsByIDs:   "pod-registry-descriptions-by-ids",
	CommandPodRegistryDescriptionsByNames: "pod-registry-descriptions-by-names",
	CommandPodRegistryPods:                "pod-registry-pods",
	CommandPodRegistryPodsByIDs:           "pod-registry-pods-by-ids",
	CommandPodRegistryPodIDsByReference:   "pod-registry-pod-ids-by-reference",
}

// IsValid reports whether c is part of the command table.
func (c Command) IsValid() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "command(" + strconv.Itoa(int(c)) + ")"
}

// Procedure returns the unqualified procedure name for c and whether the
// procedure's data is returned to the client. ok is false for storage
// commands and unknown ids.
func (c Command) Procedure() (name string, returnsData bool, ok bool) {
	p, ok := procedures[c]
	return p.name, p.returnsData, ok
}

// ParseCommand resolves a command by name ("get-goal") or numeric id ("10").
func ParseCommand(s string) (Command, error) {
	for c, name := range commandNames {
		if name == s {
			return c, nil
		}
	}

	n, err := strconv.ParseUint(s, 10, 8)
	if err == nil && Command(n).IsValid() {
		return Command(n), nil
	}

	return 0, fmt.Errorf("parse command %q: %w", s, ErrUnknownCommand)
}

// Commands returns all known commands in ascending id order.
func Commands() []Command {
	cmds := make([]Command, 0, len(commandNames))
	for c := range commandNames {
		cmds = append(cmds, c)
	}
	slices.Sort(cmds)
	return cmds
}
