// Package client talks to a broker gateway.
//
// Every operation is a single POST of a command envelope to the gateway
// endpoint. Errors reported by the gateway (status 418) surface as
// *ServerError carrying the gateway's message.
//
// # Basic Usage
//
//	c, err := client.New(&client.Config{
//		Endpoint: "https://project.supabase.co/functions/v1/b",
//		Token:    "user-jwt",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := c.Upload(ctx, client.UploadOptions{
//		LocalPath:  "./firmware.bin",
//		RemotePath: "firmware/device-1/firmware.bin",
//	})
//
//	goal, err := c.Call(ctx, broker.CommandGetGoal, json.RawMessage(`{"_device_id":"..."}`))
//
// # Profile Configuration
//
// Profiles in ~/.broker/config.yaml hold endpoints and tokens for several
// gateways:
//
//	configFile, err := client.LoadConfigFile(client.DefaultConfigPath())
//	profile, err := configFile.GetProfile("production")
//	c, err := client.New(client.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := client.NewFormatter(jsonOutput, quiet)
//	formatter.FormatCall(os.Stdout, result)
package client
