package gtfs_test

// A small feed shared by tests in this package.
//
// 2024-03-04 is a Monday. Weekday service is replaced by weekend
// service on Wednesday 2024-03-06.
func scheduleFiles() map[string][]string {
	return map[string][]string{
		"calendar.txt": {
			"service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date",
			"weekday,1,1,1,1,1,0,0,20240101,20241231",
			"weekend,0,0,0,0,0,1,1,20240101,20241231",
		},
		"calendar_dates.txt": {
			"service_id,date,exception_type",
			"weekday,20240306,2",
			"weekend,20240306,1",
		},
		"stops.txt": {
			"stop_id,stop_name,stop_lat,stop_lon,location_type,parent_station",
			"S1,Stop One,59.3,18.0,0,",
			"S2,Stop Two,59.4,18.1,0,",
			"STA,Central,59.5,18.2,1,",
			"P1,Central A,59.5,18.2,0,STA",
			"P2,Central B,59.5,18.2,0,STA",
			"S3,Quiet Stop,59.6,18.3,0,",
		},
		"routes.txt": {
			"route_id,route_short_name,route_long_name,route_type",
			"r42,42,Crosstown,3",
			"rX,,Airport Express,3",
		},
		"trips.txt": {
			"route_id,service_id,trip_id,trip_headsign,direction_id",
			"r42,weekday,T1,Downtown,0",
			"r42,weekday,T2,Downtown,0",
			"rX,weekday,T3,Airport,1",
			"r42,weekend,T4,Downtown,0",
			"r42,weekday,T5,Downtown,0",
			"r42,weekday,T6,Night,0",
			"r42,weekday,T7,Downtown,0",
		},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence,stop_headsign,pickup_type",
			"T1,08:15:00,08:16:00,S1,1,,0",
			"T1,08:30:00,08:30:00,S2,2,,0",
			"T2,06:00:00,06:00:00,S1,1,,",
			"T2,06:20:00,06:20:00,P1,2,Via Central,",
			"T3,07:30:00,07:30:00,P2,1,,0",
			"T3,07:50:00,07:50:00,S2,2,,1",
			"T4,10:00:00,10:00:00,S1,1,,0",
			"T5,07:10:00,07:10:00,S1,1,,2",
			"T5,07:40:00,07:40:00,S2,2,,0",
			"T6,24:30:00,24:30:00,S1,1,,0",
			"T7,08:30:00,08:30:00,S2,1,,0",
		},
	}
}
