package broker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toitware/broker"
)

func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{name: "default table", table: "broker_objects", wantErr: false},
		{name: "leading underscore", table: "_objects", wantErr: false},
		{name: "empty", table: "", wantErr: true},
		{name: "uppercase", table: "Objects", wantErr: true},
		{name: "leading digit", table: "1objects", wantErr: true},
		{name: "sql injection", table: "objects; DROP TABLE x", wantErr: true},
		{name: "too long", table: strings.Repeat("a", 64), wantErr: true},
		{name: "max length", table: strings.Repeat("a", 63), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := broker.ValidateTableName(tt.table)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommand_Procedure(t *testing.T) {
	tests := []struct {
		cmd         broker.Command
		name        string
		returnsData bool
	}{
		{broker.CommandUpdateGoal, "set_goal", false},
		{broker.CommandGetDevices, "get_devices", true},
		{broker.CommandNotifyBrokerCreated, "new_provisioned", false},
		{broker.CommandGetEvents, "get_events", true},
		{broker.CommandGetGoal, "get_goal", true},
		{broker.CommandReportState, "update_state", false},
		{broker.CommandReportEvent, "report_event", false},
		{broker.CommandPodRegistryDescriptionUpsert, "upsert_pod_description", true},
		{broker.CommandPodRegistryAdd, "insert_pod", false},
		{broker.CommandPodRegistryTagSet, "set_pod_tag", false},
		{broker.CommandPodRegistryTagRemove, "delete_pod_tag", false},
		{broker.CommandPodRegistryDescriptions, "get_pod_descriptions", true},
		{broker.CommandPodRegistryDescriptionsByIDs, "get_pod_descriptions_by_ids", true},
		{broker.CommandPodRegistryDescriptionsByNames, "get_pod_descriptions_by_names", true},
		{broker.CommandPodRegistryPods, "get_pods", true},
		{broker.CommandPodRegistryPodsByIDs, "get_pods_by_ids", true},
		{broker.CommandPodRegistryPodIDsByReference, "get_pods_by_reference", true},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			name, returnsData, ok := tt.cmd.Procedure()
			assert.True(t, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.returnsData, returnsData)
		})
	}
}

func TestCommand_StorageCommandsHaveNoProcedure(t *testing.T) {
	for _, cmd := range []broker.Command{broker.CommandUpload, broker.CommandDownload, 255} {
		_, _, ok := cmd.Procedure()
		assert.False(t, ok, cmd.String())
	}
}

func TestCommands_CoversTable(t *testing.T) {
	cmds := broker.Commands()

	assert.Len(t, cmds, 19)
	assert.Equal(t, broker.CommandUpload, cmds[0])
	assert.Equal(t, broker.CommandPodRegistryPodIDsByReference, cmds[len(cmds)-1])
	for _, c := range cmds {
		assert.True(t, c.IsValid())
	}
}

func TestParseCommand(t *testing.T) {
	c, err := broker.ParseCommand("get-goal")
	assert.NoError(t, err)
	assert.Equal(t, broker.CommandGetGoal, c)

	c, err = broker.ParseCommand("104")
	assert.NoError(t, err)
	assert.Equal(t, broker.CommandPodRegistryDescriptions, c)

	_, err = broker.ParseCommand("7")
	assert.ErrorIs(t, err, broker.ErrUnknownCommand)

	_, err = broker.ParseCommand("reboot")
	assert.ErrorIs(t, err, broker.ErrUnknownCommand)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "upload", broker.CommandUpload.String())
	assert.Equal(t, "pod-registry-tag-set", broker.CommandPodRegistryTagSet.String())
	assert.Equal(t, "command(255)", broker.Command(255).String())
}
