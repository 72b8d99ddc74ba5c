// Package factory instantiates pluggable modules (delivery trackers, batch
// sources) from configuration. A module is described by a type name and a
// raw settings map which the registered factory decodes into its own typed
// config with Decode.
//
//	reg := factory.NewRegistry[tracking.Tracker]()
//	reg.Register("jsonl", func(conf map[string]any) (tracking.Tracker, error) {
//	    var c tracking.JSONLConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return tracking.NewJSONLStore(c)
//	})
//	t, err := reg.Create(factory.ModuleConfig{Type: "jsonl", Conf: map[string]any{"path": "deliveries.jsonl"}})
package factory
